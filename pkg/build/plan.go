package build

import (
	"fmt"
	"hash/fnv"
	"path/filepath"
	"sort"

	"github.com/crateprune/crateprune/pkg/errors"
	"github.com/crateprune/crateprune/pkg/workspace"
)

// buildScriptCrateName is the crate name cargo assigns to build scripts.
const buildScriptCrateName = "build_script_build"

func (o *Orchestrator) outDir() string {
	return filepath.Join(o.TargetDir, "deps")
}

// planWaves lists every compilable unit of the workspace, grouped into
// dependency-ordered waves. Units within one wave have no edges between
// each other and may compile concurrently.
func (o *Orchestrator) planWaves() ([][]Unit, error) {
	ws := o.Workspace

	ids := make([]workspace.PackageID, 0, len(ws.Packages))
	for id := range ws.Packages {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	indegree := make(map[workspace.PackageID]int, len(ids))
	dependents := make(map[workspace.PackageID][]workspace.PackageID)
	for _, id := range ids {
		indegree[id] += 0
		for _, edge := range ws.Deps(id) {
			if edge.To == id {
				continue
			}
			indegree[id]++
			dependents[edge.To] = append(dependents[edge.To], id)
		}
	}

	var waves [][]Unit
	remaining := len(ids)
	ready := make([]workspace.PackageID, 0, len(ids))
	for _, id := range ids {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
		wave := make([]Unit, 0, len(ready))
		var next []workspace.PackageID
		for _, id := range ready {
			remaining--
			wave = append(wave, o.unitsOf(ws.Packages[id])...)
			for _, dep := range dependents[id] {
				indegree[dep]--
				if indegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		if len(wave) > 0 {
			waves = append(waves, wave)
		}
		ready = next
	}

	if remaining > 0 {
		// Dev-dependency cycles are legal in cargo workspaces. Whatever
		// the topological pass could not order compiles in a final wave.
		var wave []Unit
		for _, id := range ids {
			if indegree[id] > 0 {
				wave = append(wave, o.unitsOf(ws.Packages[id])...)
			}
		}
		if len(wave) > 0 {
			waves = append(waves, wave)
		}
	}
	return waves, nil
}

// unitsOf returns the compilable units of one package: its library target,
// if any, plus its build script. Workspace-local packages additionally get
// their binaries and a test-harness unit for the library, so dependencies
// referenced only from binaries or test code count as used.
func (o *Orchestrator) unitsOf(pkg *workspace.Package) []Unit {
	var units []Unit
	for _, t := range pkg.Targets {
		switch {
		case t.Kind == workspace.TargetCustomBuild:
			units = append(units, Unit{Pkg: pkg, Target: t, CustomBuild: true})
		case t.IsLibrary():
			units = append(units, Unit{Pkg: pkg, Target: t})
			if pkg.Local() {
				units = append(units, Unit{Pkg: pkg, Target: t, Test: true})
			}
		case t.Kind == workspace.TargetBin && pkg.Local():
			units = append(units, Unit{Pkg: pkg, Target: t})
		}
	}
	return units
}

// invocation synthesizes the compiler argv for a unit.
func (o *Orchestrator) invocation(unit Unit) (*Invocation, error) {
	if unit.Target.SrcPath == "" {
		return nil, errors.New(errors.ErrCodeInternal,
			"target %q of %s has no source path", unit.Target.Name, unit.Pkg)
	}

	crateName := workspace.NormalizeLibName(unit.Target.Name)
	crateType := "lib"
	switch {
	case unit.CustomBuild:
		crateName = buildScriptCrateName
		crateType = "bin"
	case unit.Target.Kind == workspace.TargetProcMacro:
		crateType = "proc-macro"
	case unit.Target.Kind == workspace.TargetBin:
		crateType = "bin"
	}

	args := []string{"--crate-name", crateName, unit.Target.SrcPath}
	if unit.Test {
		// The test harness replaces the crate type.
		args = append(args, "--test")
	} else {
		args = append(args, "--crate-type", crateType)
	}
	args = append(args,
		"--emit=metadata",
		"-C", "extra-filename="+extraFilename(unit),
		"--out-dir", o.outDir(),
	)
	if !unit.Local() {
		args = append(args, "--cap-lints", "allow")
	}

	externs, err := o.externArgs(unit)
	if err != nil {
		return nil, err
	}
	args = append(args, externs...)

	return &Invocation{Unit: unit, Args: args, Env: make(map[string]string)}, nil
}

// externKinds reports which dependency kinds the unit links: build scripts
// link build dependencies, test units link normal and dev dependencies,
// library and binary units normal dependencies only.
func (u Unit) externKinds(k workspace.DepKind) bool {
	switch {
	case u.CustomBuild:
		return k == workspace.KindBuild
	case u.Test:
		return k == workspace.KindNormal || k == workspace.KindDev
	default:
		return k == workspace.KindNormal
	}
}

// externArgs lists the --extern pairs the unit is compiled with: one per
// resolved dependency of the matching kinds, pointing at the dependency's
// compiled metadata. Binary units additionally link their own package's
// library.
func (o *Orchestrator) externArgs(unit Unit) ([]string, error) {
	ws := o.Workspace
	from := unit.Pkg.ID

	type extern struct{ name, path string }
	var externs []extern
	if unit.Target.Kind == workspace.TargetBin {
		if lib, ok := unit.Pkg.Library(); ok {
			libUnit := Unit{Pkg: unit.Pkg, Target: lib}
			externs = append(externs, extern{
				name: ws.ExternCrateName(from, from, lib),
				path: filepath.Join(o.outDir(),
					"lib"+workspace.NormalizeLibName(lib.Name)+extraFilename(libUnit)+".rmeta"),
			})
		}
	}
	seen := make(map[workspace.PackageID]bool)
	for _, edge := range ws.Deps(from) {
		if !unit.externKinds(edge.Kind) || seen[edge.To] {
			continue
		}
		target, ok := ws.Package(edge.To)
		if !ok {
			return nil, errors.New(errors.ErrCodeWorkspace,
				"dependency %q of %s resolves to unknown package %s", edge.Name, unit.Pkg, edge.To)
		}
		lib, ok := target.Library()
		if !ok {
			return nil, errors.New(errors.ErrCodeNoLibrary,
				"dependency %q of %s: %s has no library target", edge.Name, unit.Pkg, target)
		}
		seen[edge.To] = true

		depUnit := Unit{Pkg: target, Target: lib}
		linkName := ws.ExternCrateName(from, edge.To, lib)
		path := filepath.Join(o.outDir(),
			"lib"+workspace.NormalizeLibName(lib.Name)+extraFilename(depUnit)+".rmeta")
		externs = append(externs, extern{name: linkName, path: path})
	}
	sort.Slice(externs, func(i, j int) bool { return externs[i].name < externs[j].name })

	args := make([]string, 0, len(externs)*2)
	for _, e := range externs {
		args = append(args, "--extern", e.name+"="+e.path)
	}
	return args, nil
}

// extraFilename derives the disambiguating suffix for a unit's outputs.
// Stable across runs so repeated builds hit the same artifact paths.
func extraFilename(unit Unit) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s\x00%t\x00%t", unit.Pkg.ID, unit.Target.Name, unit.CustomBuild, unit.Test)
	return fmt.Sprintf("-%016x", h.Sum64())
}

// primaryOutput names the file the up-to-date check looks for, relative to
// the orchestrator's output directory. Binary-shaped units carry no "lib"
// prefix.
func primaryOutput(inv *Invocation) string {
	unit := inv.Unit
	crateName := workspace.NormalizeLibName(unit.Target.Name)
	switch {
	case unit.CustomBuild:
		return buildScriptCrateName + extraFilename(unit) + ".rmeta"
	case unit.Test, unit.Target.Kind == workspace.TargetBin:
		return crateName + extraFilename(unit) + ".rmeta"
	default:
		return "lib" + crateName + extraFilename(unit) + ".rmeta"
	}
}
