package intercept

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/crateprune/crateprune/pkg/build"
)

// saveAnalysisEnv configures the compiler's usage-analysis emission.
const saveAnalysisEnv = "RUST_SAVE_ANALYSIS_CONFIG"

// saveAnalysisConfig requests the minimal detail the correlator needs:
// reachability of external references only.
const saveAnalysisConfig = `{ "reachable_only": true, "full_docs": false, "pub_only": false, "distro_crate": false, "signatures": false, "borrow_data": false }`

// cargoEnv is re-pointed at the cached executable so build scripts spawned
// by the compiler resolve the same cargo the user invoked.
const cargoEnv = "CARGO"

var warnStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))

// Collector implements build.Hook. It accumulates invocation Records for
// workspace-local units during a build.
//
// BeforeExec may run concurrently across units; the record aggregate, the
// color-support flag, and the cached cargo path are guarded by one mutex
// whose critical section covers metadata insertion only, never I/O. After
// the build completes, Records hands the frozen aggregate off.
type Collector struct {
	stderr io.Writer

	mu            sync.Mutex
	records       []Record
	supportsColor bool
	cargoPath     string
}

// NewCollector creates a collector writing diagnostics to stderr.
// The cargo executable path is resolved once, up front; a missing cargo is
// a warning, not a failure, since only build scripts depend on it.
func NewCollector(stderr io.Writer, supportsColor bool) *Collector {
	if stderr == nil {
		stderr = os.Stderr
	}
	c := &Collector{stderr: stderr, supportsColor: supportsColor}
	path, err := exec.LookPath("cargo")
	if err != nil {
		c.warnf("couldn't locate cargo executable: %v", err)
	} else {
		c.cargoPath = path
	}
	return c
}

// BeforeExec extracts the invocation's metadata, aggregates it for
// workspace-local units, and returns the extra per-invocation
// configuration: the usage-analysis request for local units and the cargo
// path for build scripts.
func (c *Collector) BeforeExec(inv *build.Invocation) (build.ExtraConfig, error) {
	rec, err := ParseInvocation(inv.Unit.Pkg.ID, inv.Unit.CustomBuild, inv.Args)
	if err != nil {
		return build.ExtraConfig{}, err
	}
	local := inv.Unit.Local()

	c.mu.Lock()
	if local {
		c.records = append(c.records, rec)
	}
	cargoPath := c.cargoPath
	c.mu.Unlock()

	// Lint suppression should track locality: local units compile with
	// lints on, external ones with --cap-lints allow. A disagreement
	// signals a build-configuration mismatch that may cause missed
	// detections, but it does not abort the run.
	if !rec.CapLintsAllow != local {
		c.warnf("(!cap_lints_allow)=%t differs from local=%t for %s",
			!rec.CapLintsAllow, local, inv.Unit.Pkg)
	}

	extra := build.ExtraConfig{Env: make(map[string]string)}
	if cargoPath != "" {
		extra.Env[cargoEnv] = cargoPath
	}
	if local {
		extra.Args = append(extra.Args, "-Z", "save-analysis")
		extra.Env[saveAnalysisEnv] = saveAnalysisConfig
	}
	return extra, nil
}

// ForceRebuild reports whether the unit must recompile even when its
// outputs look fresh. Workspace-local units always do, so every run
// produces a fresh usage artifact.
func (c *Collector) ForceRebuild(u build.Unit) bool {
	return u.Local()
}

// Records returns a copy of the aggregated records. Meant to be called
// once, after the build has completed and the aggregate is frozen.
func (c *Collector) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

func (c *Collector) warnf(format string, args ...any) {
	prefix := "warning:"
	if c.supportsColor {
		prefix = warnStyle.Render(prefix)
	}
	fmt.Fprintf(c.stderr, "%s %s\n", prefix, fmt.Sprintf(format, args...))
}
