// Package cli implements the crateprune command-line interface.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/crateprune/crateprune/pkg/buildinfo"
	"github.com/crateprune/crateprune/pkg/errors"
)

// appName is the application name used for display and config lookup.
const appName = "crateprune"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// ErrUnusedDependencies marks the expected negative result: the run
// succeeded and unused dependencies were found. main maps it to its own
// completion code, distinct from run failures.
var ErrUnusedDependencies = errors.New(errors.ErrCodeInternal, "unused dependencies found")

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command. Running the root performs
// the unused-dependency check; subcommands cover shell completion.
func (c *CLI) RootCommand() *cobra.Command {
	opts := defaultCheckOpts()

	root := &cobra.Command{
		Use:   appName,
		Short: "Crateprune finds unused dependencies in cargo workspaces",
		Long: `Crateprune builds a cargo workspace once, intercepts every compiler
invocation, and reconciles the dependencies each package declares against
the libraries its compiled code actually references. Dependencies that are
declared but never referenced are reported per package and category.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		// The findings sentinel is not a failure; keep cobra from
		// printing it as one. main owns the error output.
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCheck(cmd.Context(), opts)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.Flags().StringVarP(&opts.dir, "workspace", "w", opts.dir, "workspace root directory")
	root.Flags().StringVar(&opts.targetDir, "target-dir", "", "directory for build artifacts (default <workspace>/target/debug)")
	root.Flags().IntVarP(&opts.jobs, "jobs", "j", 0, "number of parallel compile tasks (default # of CPUs)")
	root.Flags().StringVar(&opts.color, "color", "", "output coloring: auto, always, or never")
	root.Flags().BoolVar(&opts.skipBuildDeps, "skip-build-deps", false, "do not judge the build-dependencies category")

	root.AddCommand(c.completionCommand())

	return root
}
