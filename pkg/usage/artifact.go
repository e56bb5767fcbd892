// Package usage reads per-unit usage-analysis artifacts and correlates
// them with the dependency name indexes into used/declared sets.
package usage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/crateprune/crateprune/pkg/errors"
	"github.com/crateprune/crateprune/pkg/intercept"
)

// Artifact is the usage-analysis document a compiled unit emits: the set
// of external libraries the unit's own source references.
type Artifact struct {
	Prelude Prelude `json:"prelude"`
}

// Prelude carries the reachability section of the artifact.
type Prelude struct {
	ExternalCrates []ExternalCrate `json:"external_crates"`
}

// ExternalCrate is one referenced external library.
type ExternalCrate struct {
	ID CrateID `json:"id"`
}

// CrateID identifies a library by its canonical name.
type CrateID struct {
	Name string `json:"name"`
}

// ArtifactPath derives the artifact location for an invocation record
// deterministically from its output directory, crate name, crate type,
// and disambiguating suffix.
func ArtifactPath(rec intercept.Record) string {
	maybeLib := ""
	if strings.HasSuffix(rec.CrateType, "lib") || rec.CrateType == "proc-macro" {
		maybeLib = "lib"
	}
	filename := maybeLib + rec.CrateName + rec.ExtraFilename + ".json"
	return filepath.Join(rec.OutDir, "save-analysis", filename)
}

// ReadArtifact loads and parses the artifact for an invocation record.
// A missing or malformed artifact fails the whole run: without the usage
// signal, any unused-dependency conclusion would be unsound.
func ReadArtifact(rec intercept.Record) (*Artifact, error) {
	path := ArtifactPath(rec)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeArtifact, err,
			"%s: reading usage analysis for crate %q", rec.Pkg, rec.CrateName)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, errors.Wrap(errors.ErrCodeArtifact, err,
			"%s: malformed usage analysis at %s", rec.Pkg, path)
	}
	return &a, nil
}
