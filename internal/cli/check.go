package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/crateprune/crateprune/pkg/build"
	"github.com/crateprune/crateprune/pkg/depindex"
	"github.com/crateprune/crateprune/pkg/intercept"
	"github.com/crateprune/crateprune/pkg/report"
	"github.com/crateprune/crateprune/pkg/usage"
	"github.com/crateprune/crateprune/pkg/workspace"
)

// checkOpts holds the command-line flags for the check run.
type checkOpts struct {
	dir           string // workspace root
	targetDir     string // artifact directory override
	jobs          int    // parallel compile tasks
	color         string // auto, always, never
	skipBuildDeps bool   // drop the build-dependencies category
}

func defaultCheckOpts() *checkOpts {
	return &checkOpts{dir: "."}
}

// merge applies crateprune.toml values underneath explicit flags.
func (o *checkOpts) merge(cfg workspace.Config) {
	if o.jobs == 0 && cfg.Jobs > 0 {
		o.jobs = cfg.Jobs
	}
	if o.color == "" && cfg.Color != "" {
		o.color = cfg.Color
	}
	if cfg.SkipBuildDeps {
		o.skipBuildDeps = true
	}
}

// runCheck performs a full unused-dependency run: resolve the workspace,
// index dependency names, build with interception, correlate artifacts,
// and render the report. Returns ErrUnusedDependencies when findings exist.
func (c *CLI) runCheck(ctx context.Context, opts *checkOpts) error {
	dir, err := filepath.Abs(opts.dir)
	if err != nil {
		return err
	}

	cfg, err := workspace.LoadConfig(dir)
	if err != nil {
		return err
	}
	opts.merge(cfg)
	if opts.jobs <= 0 {
		opts.jobs = runtime.NumCPU()
	}
	targetDir := opts.targetDir
	if targetDir == "" {
		targetDir = filepath.Join(dir, "target", "debug")
	}
	styled := negotiateColor(opts.color)

	// Stage 1: resolve the workspace graph. Read-only from here on.
	p := newProgress(c.Logger)
	ws, err := (&workspace.Resolver{Dir: dir}).Resolve(ctx)
	if err != nil {
		return err
	}
	p.done(pluralf("Resolved %d package", len(ws.Packages)))

	// Stage 2: index dependency names per workspace member, before any
	// compilation starts. Ambiguous library names warn but never abort.
	renderer := report.Renderer{Styled: styled}
	indexes := make(map[workspace.PackageID]*depindex.Index, len(ws.Members))
	for _, id := range ws.Members {
		pkg := ws.Packages[id]
		if cfg.Excluded(pkg.Name) {
			c.Logger.Debug("package excluded by config", "package", pkg.String())
			continue
		}
		idx, err := depindex.New(ws, pkg, depindex.Options{SkipBuild: opts.skipBuildDeps})
		if err != nil {
			return err
		}
		if ambs := idx.Ambiguities(); len(ambs) > 0 {
			var b strings.Builder
			if err := renderer.RenderAmbiguities(&b, pkg.String(), ambs); err != nil {
				return err
			}
			warnf(os.Stderr, styled, "%s", strings.TrimSuffix(b.String(), "\n"))
		}
		indexes[id] = idx
	}

	// Stage 3: build the workspace once, intercepting every invocation.
	collector := intercept.NewCollector(os.Stderr, styled)
	orch := &build.Orchestrator{
		Workspace: ws,
		TargetDir: targetDir,
		Jobs:      opts.jobs,
		Executor:  &build.CompilerExecutor{},
		Logger:    c.Logger,
	}
	p = newProgress(c.Logger)
	if err := orch.Build(ctx, collector); err != nil {
		return err
	}
	records := collector.Records()
	p.done(pluralf("Build finished, captured %d invocation", len(records)))

	// Stage 4: single-threaded correlation over the frozen records.
	correlator := &usage.Correlator{Indexes: indexes, Logger: c.Logger}
	sets, err := correlator.Correlate(records)
	if err != nil {
		return err
	}

	rep := report.Compute(sets, func(id workspace.PackageID) string {
		if pkg, ok := ws.Package(id); ok {
			return pkg.String()
		}
		return string(id)
	})
	if err := renderer.Render(os.Stdout, rep); err != nil {
		return err
	}
	if rep.HasFindings() {
		return ErrUnusedDependencies
	}
	return nil
}

// pluralf formats a count message ending in a singular noun, appending
// "s" when the count calls for it.
func pluralf(format string, n int) string {
	msg := fmt.Sprintf(format, n)
	if n != 1 {
		msg += "s"
	}
	return msg
}
