// Package intercept captures structured metadata from compiler invocations
// during a workspace build.
//
// A Collector hooks the orchestrator's per-unit compile step, extracts an
// invocation Record, and aggregates the records of workspace-local units
// under a lock. After the build the aggregate is frozen and handed off for
// single-threaded correlation.
package intercept

import (
	"strings"

	"github.com/crateprune/crateprune/pkg/errors"
	"github.com/crateprune/crateprune/pkg/workspace"
)

// Extern is one (link-name, artifact-path) pair passed at invocation time.
type Extern struct {
	Name string
	Path string
}

// Record is the metadata captured from a single compiler invocation.
type Record struct {
	Pkg           workspace.PackageID
	CustomBuild   bool
	CrateName     string
	CrateType     string
	ExtraFilename string
	CapLintsAllow bool
	OutDir        string
	Externs       []Extern
}

// ParseInvocation extracts a Record from a unit's compiler argv.
// Crate name, extra-filename, and output directory are required; an
// invocation missing any of them cannot be interpreted and fails the run.
func ParseInvocation(pkg workspace.PackageID, customBuild bool, args []string) (Record, error) {
	rec := Record{Pkg: pkg, CustomBuild: customBuild}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--extern":
			if i+1 >= len(args) {
				continue
			}
			i++
			name, path, ok := strings.Cut(args[i], "=")
			if !ok {
				return Record{}, errors.New(errors.ErrCodeInvalidInvocation,
					"%s: invalid --extern argument %q", pkg, args[i])
			}
			rec.Externs = append(rec.Externs, Extern{Name: name, Path: path})
		case "--crate-name":
			if i+1 < len(args) {
				i++
				rec.CrateName = args[i]
			}
		case "--crate-type":
			if i+1 < len(args) {
				i++
				rec.CrateType = args[i]
			}
		case "--cap-lints":
			if i+1 < len(args) {
				i++
				if args[i] == "allow" {
					rec.CapLintsAllow = true
				}
			}
		case "--out-dir":
			if i+1 < len(args) {
				i++
				rec.OutDir = args[i]
			}
		case "-C":
			if i+1 < len(args) {
				i++
				if v, ok := strings.CutPrefix(args[i], "extra-filename="); ok {
					rec.ExtraFilename = v
				}
			}
		}
	}

	if rec.CrateName == "" {
		return Record{}, errors.New(errors.ErrCodeInvalidInvocation, "%s: invocation carries no crate name", pkg)
	}
	if rec.ExtraFilename == "" {
		return Record{}, errors.New(errors.ErrCodeInvalidInvocation, "%s: invocation carries no extra-filename", pkg)
	}
	if rec.OutDir == "" {
		return Record{}, errors.New(errors.ErrCodeInvalidInvocation, "%s: invocation carries no output directory", pkg)
	}
	if rec.CrateType == "" {
		rec.CrateType = "bin"
	}
	return rec, nil
}
