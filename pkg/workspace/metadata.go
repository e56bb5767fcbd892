package workspace

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os/exec"

	"github.com/crateprune/crateprune/pkg/errors"
)

// CommandRunner executes a command in a directory and returns its combined
// output. Injectable so tests can feed canned metadata without running cargo.
type CommandRunner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// RunCommand is the default CommandRunner, backed by os/exec.
func RunCommand(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %w\n%s", name, err, exitErr.Stderr)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Resolver loads workspaces via cargo metadata.
type Resolver struct {
	Dir string        // workspace root (directory containing Cargo.toml)
	Run CommandRunner // defaults to RunCommand
}

// Resolve runs cargo metadata and decodes it into a Workspace.
func (r *Resolver) Resolve(ctx context.Context) (*Workspace, error) {
	run := r.Run
	if run == nil {
		run = RunCommand
	}
	out, err := run(ctx, r.Dir, "cargo", "metadata", "--format-version", "1")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeWorkspace, err, "cargo metadata failed in %q", r.Dir)
	}
	return DecodeMetadata(out)
}

// Wire format of cargo metadata. Only the fields this tool consumes.
type metadataDoc struct {
	Packages         []metadataPackage `json:"packages"`
	WorkspaceMembers []string          `json:"workspace_members"`
	Resolve          *metadataResolve  `json:"resolve"`
}

type metadataPackage struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Version      string               `json:"version"`
	Source       *string              `json:"source"`
	Targets      []metadataTarget     `json:"targets"`
	Dependencies []metadataDependency `json:"dependencies"`
}

type metadataTarget struct {
	Kind    []string `json:"kind"`
	Name    string   `json:"name"`
	SrcPath string   `json:"src_path"`
}

type metadataDependency struct {
	Name   string  `json:"name"`
	Kind   *string `json:"kind"` // null, "dev", or "build"
	Rename *string `json:"rename"`
}

type metadataResolve struct {
	Nodes []metadataNode `json:"nodes"`
}

type metadataNode struct {
	ID   string            `json:"id"`
	Deps []metadataNodeDep `json:"deps"`
}

type metadataNodeDep struct {
	// Name is the extern crate name the compiler links the dependency
	// under, after any manifest rename.
	Name     string            `json:"name"`
	Pkg      string            `json:"pkg"`
	DepKinds []metadataDepKind `json:"dep_kinds"`
}

type metadataDepKind struct {
	Kind *string `json:"kind"` // null, "dev", or "build"
}

// DecodeMetadata parses cargo metadata JSON output into a Workspace.
func DecodeMetadata(data []byte) (*Workspace, error) {
	var doc metadataDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeWorkspace, err, "malformed cargo metadata output")
	}
	if doc.Resolve == nil {
		return nil, errors.New(errors.ErrCodeWorkspace, "cargo metadata output carries no resolve graph")
	}

	ws := &Workspace{
		Packages:  make(map[PackageID]*Package, len(doc.Packages)),
		linkNames: make(map[LinkRef]string),
	}
	byName := make(map[string][]*Package)
	for _, mp := range doc.Packages {
		pkg := &Package{
			ID:      PackageID(mp.ID),
			Name:    mp.Name,
			Version: mp.Version,
		}
		if mp.Source != nil {
			pkg.Source = *mp.Source
		}
		for _, mt := range mp.Targets {
			if len(mt.Kind) == 0 {
				continue
			}
			pkg.Targets = append(pkg.Targets, Target{
				Kind:    TargetKind(mt.Kind[0]),
				Name:    mt.Name,
				SrcPath: mt.SrcPath,
			})
		}
		ws.Packages[pkg.ID] = pkg
		byName[pkg.Name] = append(byName[pkg.Name], pkg)
	}
	for _, id := range doc.WorkspaceMembers {
		if _, ok := ws.Packages[PackageID(id)]; !ok {
			return nil, errors.New(errors.ErrCodeWorkspace, "workspace member %s missing from package list", id)
		}
		ws.Members = append(ws.Members, PackageID(id))
	}

	// The resolve graph supplies the actual edges and link names; the
	// per-package dependency declarations supply manifest names and kinds.
	declared := make(map[string][]metadataDependency, len(doc.Packages))
	for _, mp := range doc.Packages {
		declared[mp.ID] = mp.Dependencies
	}
	for _, node := range doc.Resolve.Nodes {
		from := PackageID(node.ID)
		for _, nd := range node.Deps {
			to := PackageID(nd.Pkg)
			target, ok := ws.Packages[to]
			if !ok {
				return nil, errors.New(errors.ErrCodeWorkspace,
					"resolved dependency %s of %s missing from package list", nd.Pkg, node.ID)
			}
			ws.linkNames[LinkRef{From: from, To: to}] = nd.Name
			decl := matchDeclaration(declared[node.ID], target.Name, nd.Name)
			name := target.Name
			if decl != nil {
				name = manifestName(*decl, target.Name)
			}
			if len(nd.DepKinds) == 0 {
				// Older metadata without dep_kinds; the declaration's
				// kind is the only signal left.
				var kind *string
				if decl != nil {
					kind = decl.Kind
				}
				ws.Edges = append(ws.Edges, Edge{From: from, To: to, Name: name, Kind: depKind(kind)})
				continue
			}
			for _, dk := range nd.DepKinds {
				ws.Edges = append(ws.Edges, Edge{From: from, To: to, Name: name, Kind: depKind(dk.Kind)})
			}
		}
	}

	if err := ws.finish(); err != nil {
		return nil, err
	}
	return ws, nil
}

// matchDeclaration finds the manifest declaration behind one resolved node
// dep. Package name alone is not enough: a consumer may resolve two
// versions of the same-named package through a rename, so a renamed
// declaration only matches the node whose extern name carries the rename,
// and un-renamed declarations cover the rest.
func matchDeclaration(decls []metadataDependency, pkgName, externName string) *metadataDependency {
	var fallback *metadataDependency
	for i := range decls {
		d := &decls[i]
		if d.Name != pkgName {
			continue
		}
		if d.Rename != nil && *d.Rename != "" {
			if NormalizeLibName(*d.Rename) == externName {
				return d
			}
			continue
		}
		fallback = d
	}
	return fallback
}

func manifestName(d metadataDependency, pkgName string) string {
	if d.Rename != nil && *d.Rename != "" {
		return *d.Rename
	}
	return pkgName
}

func depKind(kind *string) DepKind {
	if kind == nil {
		return KindNormal
	}
	switch *kind {
	case "dev":
		return KindDev
	case "build":
		return KindBuild
	default:
		return KindNormal
	}
}
