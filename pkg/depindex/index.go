// Package depindex builds per-package lookup structures over a workspace's
// dependency edges.
//
// For each package two parallel map pairs are kept, one for normal and dev
// dependencies and one for build dependencies:
//
//   - by link-name: the name the compiler is invoked with for a dependency,
//     mapped to the manifest-declared dependency name (one-to-one within a
//     package).
//   - by library name: the dependency target's own canonical library name,
//     mapped to the set of manifest names resolving to a library of that
//     name. Several manifest dependencies may collide on one library name;
//     such keys are ambiguous and reported, never silently resolved.
//
// The package's own library is never inserted, so self-references resolve
// to nothing while dependencies whose library collides with the package's
// own name still resolve.
package depindex

import (
	"sort"

	"github.com/crateprune/crateprune/pkg/errors"
	"github.com/crateprune/crateprune/pkg/workspace"
)

// Category selects one of the two map pairs of an Index.
type Category int

const (
	// NormalDev covers [dependencies] and [dev-dependencies].
	NormalDev Category = iota
	// Build covers [build-dependencies], consumed by build scripts.
	Build
)

// String returns the report label for the category.
func (c Category) String() string {
	if c == Build {
		return "build-dependencies"
	}
	return "(dev-)dependencies"
}

// nameMaps is one category's lookup pair.
type nameMaps struct {
	byLinkName map[string]string
	byLibName  map[string]map[string]struct{}
}

func newNameMaps() nameMaps {
	return nameMaps{
		byLinkName: make(map[string]string),
		byLibName:  make(map[string]map[string]struct{}),
	}
}

func (m nameMaps) insert(linkName, libName, manifestName string) {
	m.byLinkName[linkName] = manifestName
	set, ok := m.byLibName[libName]
	if !ok {
		set = make(map[string]struct{})
		m.byLibName[libName] = set
	}
	set[manifestName] = struct{}{}
}

// Index holds the dependency name maps of a single package. The package's
// own library never appears in them.
type Index struct {
	pkg       workspace.PackageID
	normalDev nameMaps
	build     nameMaps
}

// Ambiguity is a canonical library name shared by more than one manifest
// dependency of the same package and category. Usage of such a library
// cannot be uniquely attributed; the correlator marks every colliding
// manifest name as used.
type Ambiguity struct {
	Category Category
	LibName  string
	Names    []string // colliding manifest names, sorted
}

// Options configure index construction.
type Options struct {
	// SkipBuild leaves the build-dependencies category unindexed, taking
	// it out of ambiguity warnings and unused-ness judgment alike.
	SkipBuild bool
}

// New constructs the Index for one package from the resolved workspace.
// It fails when a dependency edge's target exposes no library: such a
// dependency cannot be referenced in code and indicates an invalid graph.
func New(ws *workspace.Workspace, pkg *workspace.Package, opts Options) (*Index, error) {
	idx := &Index{
		pkg:       pkg.ID,
		normalDev: newNameMaps(),
		build:     newNameMaps(),
	}

	for _, edge := range ws.Deps(pkg.ID) {
		if opts.SkipBuild && edge.Kind == workspace.KindBuild {
			continue
		}
		target, ok := ws.Package(edge.To)
		if !ok {
			return nil, errors.New(errors.ErrCodeWorkspace,
				"dependency %q of %s resolves to unknown package %s", edge.Name, pkg, edge.To)
		}
		lib, ok := target.Library()
		if !ok {
			return nil, errors.New(errors.ErrCodeNoLibrary,
				"dependency %q of %s: %s has no library target", edge.Name, pkg, target)
		}

		linkName := ws.ExternCrateName(pkg.ID, edge.To, lib)
		libName := workspace.NormalizeLibName(lib.Name)

		maps := idx.normalDev
		if edge.Kind == workspace.KindBuild {
			maps = idx.build
		}
		maps.insert(linkName, libName, edge.Name)
	}

	return idx, nil
}

// Package returns the identity of the package the index was built for.
func (idx *Index) Package() workspace.PackageID { return idx.pkg }

func (idx *Index) maps(cat Category) nameMaps {
	if cat == Build {
		return idx.build
	}
	return idx.normalDev
}

// LinkDependency resolves a link-name to the manifest dependency name it
// was declared under. The second result is false for link-names unknown to
// this package, e.g. transitive or implicitly injected libraries.
func (idx *Index) LinkDependency(cat Category, linkName string) (string, bool) {
	name, ok := idx.maps(cat).byLinkName[linkName]
	return name, ok
}

// LibDependencies returns every manifest dependency name whose resolved
// library carries the given canonical name, sorted. More than one result
// means the name is ambiguous within this package.
func (idx *Index) LibDependencies(cat Category, libName string) []string {
	set := idx.maps(cat).byLibName[libName]
	if len(set) == 0 {
		return nil
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Ambiguities lists every library name mapping to more than one manifest
// dependency, across both categories, in stable order.
func (idx *Index) Ambiguities() []Ambiguity {
	var out []Ambiguity
	for _, cat := range []Category{NormalDev, Build} {
		maps := idx.maps(cat)
		libs := make([]string, 0, len(maps.byLibName))
		for lib, set := range maps.byLibName {
			if len(set) > 1 {
				libs = append(libs, lib)
			}
		}
		sort.Strings(libs)
		for _, lib := range libs {
			out = append(out, Ambiguity{
				Category: cat,
				LibName:  lib,
				Names:    idx.LibDependencies(cat, lib),
			})
		}
	}
	return out
}
