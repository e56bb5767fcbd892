// Package workspace loads a Cargo build workspace: package identities,
// build targets, resolved dependency edges, and per-edge link-name
// resolution.
//
// The graph is read from `cargo metadata --format-version 1` and is
// immutable after resolution. Downstream stages (indexing, interception,
// correlation) treat it as read-only shared data.
package workspace

import (
	"fmt"
	"sort"
	"strings"

	"github.com/crateprune/crateprune/pkg/errors"
)

// PackageID uniquely identifies a package by name, version, and origin.
// It is the opaque identifier emitted by cargo metadata, e.g.
// "serde 1.0.193 (registry+https://github.com/rust-lang/crates.io-index)".
type PackageID string

// DepKind categorizes a dependency edge.
type DepKind int

const (
	KindNormal DepKind = iota
	KindDev
	KindBuild
)

// String returns the manifest section name for the kind.
func (k DepKind) String() string {
	switch k {
	case KindDev:
		return "dev"
	case KindBuild:
		return "build"
	default:
		return "normal"
	}
}

// TargetKind categorizes a build target.
type TargetKind string

const (
	TargetLib         TargetKind = "lib"
	TargetRlib        TargetKind = "rlib"
	TargetDylib       TargetKind = "dylib"
	TargetCdylib      TargetKind = "cdylib"
	TargetProcMacro   TargetKind = "proc-macro"
	TargetBin         TargetKind = "bin"
	TargetCustomBuild TargetKind = "custom-build"
)

// Target is a single build target of a package.
type Target struct {
	Kind    TargetKind
	Name    string
	SrcPath string
}

// IsLibrary reports whether the target produces a linkable library.
func (t Target) IsLibrary() bool {
	switch t.Kind {
	case TargetLib, TargetRlib, TargetDylib, TargetCdylib, TargetProcMacro:
		return true
	}
	return false
}

// Package is a resolved package with its build targets.
type Package struct {
	ID      PackageID
	Name    string
	Version string
	Source  string // empty for path (workspace-local) packages
	Targets []Target
}

// Local reports whether the package is developed in the workspace,
// as opposed to fetched from a registry.
func (p *Package) Local() bool { return p.Source == "" }

// String renders the package for reports and diagnostics.
func (p *Package) String() string {
	return fmt.Sprintf("%s v%s", p.Name, p.Version)
}

// Library returns the package's library target, if any.
// A package has at most one.
func (p *Package) Library() (Target, bool) {
	for _, t := range p.Targets {
		if t.IsLibrary() {
			return t, true
		}
	}
	return Target{}, false
}

// Edge is a single manifest-declared dependency of a package.
type Edge struct {
	From PackageID
	To   PackageID
	// Name is the manifest-declared dependency name, the name judged
	// for unused-ness. Differs from the target package's name when the
	// dependency is renamed in the manifest.
	Name string
	Kind DepKind
}

// LinkRef addresses the link-name resolution of one (consumer, dependency)
// pair.
type LinkRef struct {
	From PackageID
	To   PackageID
}

// Workspace is the resolved dependency graph of a build workspace.
type Workspace struct {
	Packages map[PackageID]*Package
	Members  []PackageID // workspace-local packages, sorted
	Edges    []Edge

	// linkNames records explicit link-name resolutions per
	// (consumer, dependency) pair, taken from the resolve graph.
	linkNames map[LinkRef]string

	edgesByFrom map[PackageID][]Edge
}

// New assembles a Workspace from already resolved parts. DecodeMetadata is
// the usual entry point; New serves alternate resolvers and tests.
func New(packages []*Package, members []PackageID, edges []Edge, linkNames map[LinkRef]string) (*Workspace, error) {
	ws := &Workspace{
		Packages:  make(map[PackageID]*Package, len(packages)),
		Members:   append([]PackageID(nil), members...),
		Edges:     append([]Edge(nil), edges...),
		linkNames: make(map[LinkRef]string, len(linkNames)),
	}
	for _, p := range packages {
		ws.Packages[p.ID] = p
	}
	for ref, name := range linkNames {
		ws.linkNames[ref] = name
	}
	for _, m := range ws.Members {
		if _, ok := ws.Packages[m]; !ok {
			return nil, errors.New(errors.ErrCodeWorkspace, "workspace member %s missing from package list", m)
		}
	}
	if err := ws.finish(); err != nil {
		return nil, err
	}
	return ws, nil
}

// Package returns the package with the given identity.
func (w *Workspace) Package(id PackageID) (*Package, bool) {
	p, ok := w.Packages[id]
	return p, ok
}

// Deps returns the dependency edges declared by the given consumer,
// in stable order.
func (w *Workspace) Deps(from PackageID) []Edge {
	return w.edgesByFrom[from]
}

// ExternCrateName resolves the link-name the compiler is invoked with for
// a dependency of the given consumer. An explicit rename recorded in the
// resolve graph wins; otherwise it is the library target's own name with
// separators normalized.
func (w *Workspace) ExternCrateName(from, to PackageID, lib Target) string {
	if name, ok := w.linkNames[LinkRef{From: from, To: to}]; ok {
		return name
	}
	return NormalizeLibName(lib.Name)
}

// NormalizeLibName canonicalizes a library name so equivalent spellings
// match: cargo exposes `my-lib` to the compiler as `my_lib`.
func NormalizeLibName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// finish builds the derived lookup structures after decoding.
func (w *Workspace) finish() error {
	w.edgesByFrom = make(map[PackageID][]Edge)
	for _, e := range w.Edges {
		if _, ok := w.Packages[e.To]; !ok {
			return errors.New(errors.ErrCodeWorkspace,
				"edge %q of %s points at unknown package %s", e.Name, e.From, e.To)
		}
		w.edgesByFrom[e.From] = append(w.edgesByFrom[e.From], e)
	}
	for from, edges := range w.edgesByFrom {
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].To != edges[j].To {
				return edges[i].To < edges[j].To
			}
			if edges[i].Name != edges[j].Name {
				return edges[i].Name < edges[j].Name
			}
			return edges[i].Kind < edges[j].Kind
		})
		w.edgesByFrom[from] = edges
	}
	sort.Slice(w.Members, func(i, j int) bool { return w.Members[i] < w.Members[j] })
	return nil
}
