// Package report computes and renders the unused-dependency report.
package report

import (
	"sort"

	"github.com/crateprune/crateprune/pkg/usage"
	"github.com/crateprune/crateprune/pkg/workspace"
)

// Entry is one package's unused dependencies, per category.
type Entry struct {
	Pkg       workspace.PackageID
	Label     string   // display form of the package
	NormalDev []string // unused (dev-)dependencies, sorted
	Build     []string // unused build-dependencies, sorted
}

// Report is the final unused-dependency result of a run.
type Report struct {
	Entries []Entry // ordered by package identity
}

// HasFindings reports whether any unused dependency was found.
func (r *Report) HasFindings() bool {
	for _, e := range r.Entries {
		if len(e.NormalDev) > 0 || len(e.Build) > 0 {
			return true
		}
	}
	return false
}

// Labeler renders a package identity for display.
type Labeler func(id workspace.PackageID) string

// Compute produces the report as a pure set difference: per package and
// category, declared minus used. Output order is deterministic, by package
// identity and then by dependency name.
func Compute(sets *usage.Sets, label Labeler) *Report {
	unused := make(map[workspace.PackageID]*Entry)

	entry := func(id workspace.PackageID) *Entry {
		e, ok := unused[id]
		if !ok {
			e = &Entry{Pkg: id}
			if label != nil {
				e.Label = label(id)
			} else {
				e.Label = string(id)
			}
			unused[id] = e
		}
		return e
	}

	for key := range sets.DeclaredNormalDev {
		if _, ok := sets.UsedNormalDev[key]; !ok {
			e := entry(key.Pkg)
			e.NormalDev = append(e.NormalDev, key.Dep)
		}
	}
	for key := range sets.DeclaredBuild {
		if _, ok := sets.UsedBuild[key]; !ok {
			e := entry(key.Pkg)
			e.Build = append(e.Build, key.Dep)
		}
	}

	r := &Report{Entries: make([]Entry, 0, len(unused))}
	for _, e := range unused {
		sort.Strings(e.NormalDev)
		sort.Strings(e.Build)
		r.Entries = append(r.Entries, *e)
	}
	sort.Slice(r.Entries, func(i, j int) bool { return r.Entries[i].Pkg < r.Entries[j].Pkg })
	return r
}
