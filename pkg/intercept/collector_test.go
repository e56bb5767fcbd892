package intercept

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/crateprune/crateprune/pkg/build"
	"github.com/crateprune/crateprune/pkg/workspace"
)

func localInvocation(name string) *build.Invocation {
	pkg := &workspace.Package{
		ID:      workspace.PackageID(name + " 0.1.0 (path+file:///ws/" + name + ")"),
		Name:    name,
		Version: "0.1.0",
		Targets: []workspace.Target{{Kind: workspace.TargetLib, Name: name}},
	}
	return &build.Invocation{
		Unit: build.Unit{Pkg: pkg, Target: pkg.Targets[0]},
		Args: []string{
			"--crate-name", name,
			"/ws/" + name + "/src/lib.rs",
			"--crate-type", "lib",
			"-C", "extra-filename=-1",
			"--out-dir", "/ws/target/debug/deps",
		},
		Env: map[string]string{},
	}
}

func externalInvocation(name string) *build.Invocation {
	inv := localInvocation(name)
	inv.Unit.Pkg.Source = "registry+https://github.com/rust-lang/crates.io-index"
	inv.Args = append(inv.Args, "--cap-lints", "allow")
	return inv
}

func TestCollectorRecordsLocalUnits(t *testing.T) {
	var buf bytes.Buffer
	c := &Collector{stderr: &buf}

	if _, err := c.BeforeExec(localInvocation("app")); err != nil {
		t.Fatalf("BeforeExec() error = %v", err)
	}
	if _, err := c.BeforeExec(externalInvocation("serde")); err != nil {
		t.Fatalf("BeforeExec() error = %v", err)
	}

	records := c.Records()
	if len(records) != 1 {
		t.Fatalf("len(Records()) = %d, want 1 (external units are not aggregated)", len(records))
	}
	if records[0].CrateName != "app" {
		t.Errorf("recorded crate = %q, want app", records[0].CrateName)
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected diagnostics: %q", buf.String())
	}
}

func TestCollectorSaveAnalysisConfig(t *testing.T) {
	c := &Collector{stderr: &bytes.Buffer{}}

	extra, err := c.BeforeExec(localInvocation("app"))
	if err != nil {
		t.Fatalf("BeforeExec() error = %v", err)
	}
	if len(extra.Args) != 2 || extra.Args[0] != "-Z" || extra.Args[1] != "save-analysis" {
		t.Errorf("local extra args = %v, want [-Z save-analysis]", extra.Args)
	}
	cfg, ok := extra.Env[saveAnalysisEnv]
	if !ok {
		t.Fatalf("local invocation missing %s", saveAnalysisEnv)
	}
	if !strings.Contains(cfg, `"reachable_only": true`) {
		t.Errorf("analysis config should request reachability only, got %q", cfg)
	}

	extra, err = c.BeforeExec(externalInvocation("serde"))
	if err != nil {
		t.Fatalf("BeforeExec() error = %v", err)
	}
	if len(extra.Args) != 0 {
		t.Errorf("external extra args = %v, want none", extra.Args)
	}
	if _, ok := extra.Env[saveAnalysisEnv]; ok {
		t.Error("external invocation should not request usage analysis")
	}
}

func TestCollectorLintMismatchWarning(t *testing.T) {
	var buf bytes.Buffer
	c := &Collector{stderr: &buf}

	// A local unit compiled with --cap-lints allow disagrees with its
	// locality; the run continues with a diagnostic.
	inv := localInvocation("app")
	inv.Args = append(inv.Args, "--cap-lints", "allow")
	if _, err := c.BeforeExec(inv); err != nil {
		t.Fatalf("BeforeExec() error = %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "warning:") {
		t.Errorf("diagnostic = %q, want warning: prefix", out)
	}
	if !strings.Contains(out, "cap_lints") {
		t.Errorf("diagnostic = %q, want cap_lints mention", out)
	}

	// The mismatched unit is still recorded.
	if len(c.Records()) != 1 {
		t.Errorf("len(Records()) = %d, want 1", len(c.Records()))
	}
}

func TestCollectorInvalidInvocation(t *testing.T) {
	c := &Collector{stderr: &bytes.Buffer{}}

	inv := localInvocation("app")
	inv.Args = []string{"/ws/app/src/lib.rs"} // no metadata at all
	if _, err := c.BeforeExec(inv); err == nil {
		t.Fatal("BeforeExec() error = nil, want fatal error")
	}
}

func TestCollectorConcurrentAppends(t *testing.T) {
	c := &Collector{stderr: &bytes.Buffer{}}

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.BeforeExec(localInvocation("app")); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if got := len(c.Records()); got != n {
		t.Errorf("len(Records()) = %d, want %d", got, n)
	}
}

func TestCollectorForceRebuild(t *testing.T) {
	c := &Collector{stderr: &bytes.Buffer{}}

	if !c.ForceRebuild(localInvocation("app").Unit) {
		t.Error("ForceRebuild(local) = false, want true")
	}
	if c.ForceRebuild(externalInvocation("serde").Unit) {
		t.Error("ForceRebuild(external) = true, want false")
	}
}
