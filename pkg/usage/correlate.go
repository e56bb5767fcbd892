package usage

import (
	"github.com/charmbracelet/log"

	"github.com/crateprune/crateprune/pkg/depindex"
	"github.com/crateprune/crateprune/pkg/intercept"
	"github.com/crateprune/crateprune/pkg/workspace"
)

// Key is one (package, manifest dependency name) fact.
type Key struct {
	Pkg workspace.PackageID
	Dep string
}

// Sets holds the used and declared dependency facts of a run, kept
// separately per category. Computed once after the build, consumed by the
// unused-set computation, then discarded.
type Sets struct {
	UsedNormalDev     map[Key]struct{}
	UsedBuild         map[Key]struct{}
	DeclaredNormalDev map[Key]struct{}
	DeclaredBuild     map[Key]struct{}
}

func newSets() *Sets {
	return &Sets{
		UsedNormalDev:     make(map[Key]struct{}),
		UsedBuild:         make(map[Key]struct{}),
		DeclaredNormalDev: make(map[Key]struct{}),
		DeclaredBuild:     make(map[Key]struct{}),
	}
}

// ArtifactReader loads the usage artifact of an invocation record.
// Injectable so correlation can be tested on canned artifacts.
type ArtifactReader func(rec intercept.Record) (*Artifact, error)

// Correlator reconciles invocation records and usage artifacts against the
// per-package name indexes.
type Correlator struct {
	Indexes map[workspace.PackageID]*depindex.Index
	Read    ArtifactReader // defaults to ReadArtifact
	Logger  *log.Logger
}

// Correlate translates every record into (package, dependency) facts.
//
// Each library identity in a record's artifact marks all manifest names
// indexed under it as used; an ambiguous identity marks every colliding
// name, trading false negatives for the absence of false positives. Each
// declared --extern link contributes its manifest name to the declared
// set, the universe judged for unused-ness.
func (c *Correlator) Correlate(records []intercept.Record) (*Sets, error) {
	read := c.Read
	if read == nil {
		read = ReadArtifact
	}
	logger := c.Logger
	if logger == nil {
		logger = log.Default()
	}

	sets := newSets()
	for _, rec := range records {
		idx, ok := c.Indexes[rec.Pkg]
		if !ok {
			// Not a workspace member; nothing to judge.
			continue
		}

		art, err := read(rec)
		if err != nil {
			return nil, err
		}

		cat := depindex.NormalDev
		used, declared := sets.UsedNormalDev, sets.DeclaredNormalDev
		if rec.CustomBuild {
			cat = depindex.Build
			used, declared = sets.UsedBuild, sets.DeclaredBuild
		}

		// The index never maps the package's own library, so a unit
		// referencing itself resolves to nothing here, while a dependency
		// whose library collides with that name still resolves.
		for _, ext := range art.Prelude.ExternalCrates {
			for _, dep := range idx.LibDependencies(cat, ext.ID.Name) {
				used[Key{Pkg: rec.Pkg, Dep: dep}] = struct{}{}
			}
		}

		for _, ext := range rec.Externs {
			dep, ok := idx.LinkDependency(cat, ext.Name)
			if !ok {
				// Links the index never saw are either injected by the
				// orchestrator (transitive, implicit) and ignorable, or
				// an internal inconsistency. Either way only this link
				// is skipped, never the run.
				logger.Debug("link-name not indexed",
					"package", string(rec.Pkg), "link", ext.Name, "custom_build", rec.CustomBuild)
				continue
			}
			declared[Key{Pkg: rec.Pkg, Dep: dep}] = struct{}{}
		}
	}
	return sets, nil
}
