// Package build drives one compiler invocation per unit of a resolved
// workspace.
//
// The orchestrator is the sole source of parallelism in a run: units are
// compiled as concurrent tasks, bounded by the job limit, in dependency
// order. Everything a unit needs is threaded through the per-invocation
// hook parameters; no ambient process state is mutated between tasks.
//
// Process execution itself is pluggable via Executor, so tests can observe
// invocations without a compiler installed.
package build

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/crateprune/crateprune/pkg/errors"
	"github.com/crateprune/crateprune/pkg/workspace"
)

// Unit is one compilation task: a package's library, a binary, the
// library's test harness, or the build script.
type Unit struct {
	Pkg         *workspace.Package
	Target      workspace.Target
	CustomBuild bool
	// Test compiles the library target under the test harness. Test units
	// exist for workspace-local packages only and are the sole consumers
	// of dev-dependency externs.
	Test bool
}

// Local reports whether the unit belongs to a workspace-local package.
func (u Unit) Local() bool { return u.Pkg.Local() }

// Invocation is the full compiler invocation for one unit.
type Invocation struct {
	Unit Unit
	Args []string          // compiler argv, excluding the program itself
	Env  map[string]string // extra environment for this invocation only
}

// ExtraConfig is per-invocation configuration injected by a Hook.
// It applies to that invocation alone; concurrent invocations stay
// isolated from one another.
type ExtraConfig struct {
	Args []string
	Env  map[string]string
}

// Hook observes and adjusts every compile invocation.
//
// BeforeExec may be called concurrently across units; implementations own
// their synchronization. ForceRebuild is consulted before the up-to-date
// check: a true result always recompiles the unit.
type Hook interface {
	BeforeExec(inv *Invocation) (ExtraConfig, error)
	ForceRebuild(u Unit) bool
}

// Executor runs a prepared invocation. The default executor shells out to
// rustc; tests substitute fakes.
type Executor interface {
	Exec(ctx context.Context, inv *Invocation) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, inv *Invocation) error

// Exec implements Executor.
func (f ExecutorFunc) Exec(ctx context.Context, inv *Invocation) error { return f(ctx, inv) }

// CompilerExecutor executes invocations with a real compiler process.
type CompilerExecutor struct {
	// Compiler is the program to run; "rustc" when empty.
	Compiler string
}

// Exec implements Executor.
func (e *CompilerExecutor) Exec(ctx context.Context, inv *Invocation) error {
	compiler := e.Compiler
	if compiler == "" {
		compiler = "rustc"
	}
	cmd := exec.CommandContext(ctx, compiler, inv.Args...)
	cmd.Env = os.Environ()
	for k, v := range inv.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrap(errors.ErrCodeBuildFailed, err,
			"compiling %s", inv.Unit.Pkg)
	}
	return nil
}

// Orchestrator compiles every unit of a workspace.
type Orchestrator struct {
	Workspace *workspace.Workspace
	TargetDir string // artifact root, e.g. <workspace>/target/debug
	Jobs      int    // parallel task cap; 0 means a single task at a time
	Executor  Executor
	Logger    *log.Logger
}

// Build plans the workspace's units and compiles them in dependency order,
// consulting hook before every invocation. A failing invocation aborts the
// whole build; partial results are discarded by the caller.
func (o *Orchestrator) Build(ctx context.Context, hook Hook) error {
	if o.Executor == nil {
		return errors.New(errors.ErrCodeInternal, "orchestrator has no executor")
	}
	logger := o.Logger
	if logger == nil {
		logger = log.Default()
	}
	jobs := o.Jobs
	if jobs <= 0 {
		jobs = 1
	}

	waves, err := o.planWaves()
	if err != nil {
		return err
	}

	for _, wave := range waves {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(jobs)
		for _, unit := range wave {
			unit := unit
			g.Go(func() error {
				return o.compile(gctx, unit, hook, logger)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) compile(ctx context.Context, unit Unit, hook Hook, logger *log.Logger) error {
	inv, err := o.invocation(unit)
	if err != nil {
		return err
	}

	if !hook.ForceRebuild(unit) && o.upToDate(inv) {
		logger.Debug("unit up to date", "package", unit.Pkg.String(), "target", unit.Target.Name)
		return nil
	}

	extra, err := hook.BeforeExec(inv)
	if err != nil {
		return err
	}
	inv.Args = append(inv.Args, extra.Args...)
	if len(extra.Env) > 0 && inv.Env == nil {
		inv.Env = make(map[string]string, len(extra.Env))
	}
	for k, v := range extra.Env {
		inv.Env[k] = v
	}

	logger.Debug("compiling unit",
		"package", unit.Pkg.String(),
		"target", unit.Target.Name,
		"custom_build", unit.CustomBuild)
	return o.Executor.Exec(ctx, inv)
}

// upToDate reports whether the unit's primary output already exists.
// Workspace-local units never reach this check; the interceptor forces
// their rebuild so a fresh usage artifact is always produced.
func (o *Orchestrator) upToDate(inv *Invocation) bool {
	out := primaryOutput(inv)
	if out == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(o.outDir(), out))
	return err == nil
}
