package report

import (
	"reflect"
	"testing"

	"github.com/crateprune/crateprune/pkg/usage"
	"github.com/crateprune/crateprune/pkg/workspace"
)

const (
	appID = workspace.PackageID("app 0.1.0 (path+file:///ws/app)")
	libID = workspace.PackageID("util 0.2.0 (path+file:///ws/util)")
)

func key(id workspace.PackageID, dep string) usage.Key {
	return usage.Key{Pkg: id, Dep: dep}
}

func setOf(keys ...usage.Key) map[usage.Key]struct{} {
	m := make(map[usage.Key]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}

func TestComputeDifference(t *testing.T) {
	sets := &usage.Sets{
		DeclaredNormalDev: setOf(key(appID, "serde"), key(appID, "b"), key(libID, "log")),
		UsedNormalDev:     setOf(key(appID, "serde"), key(libID, "log")),
		DeclaredBuild:     setOf(key(appID, "cc")),
		UsedBuild:         setOf(key(appID, "cc")),
	}

	rep := Compute(sets, nil)
	if !rep.HasFindings() {
		t.Fatal("HasFindings() = false, want true")
	}
	if len(rep.Entries) != 1 {
		t.Fatalf("len(Entries) = %d, want 1", len(rep.Entries))
	}
	e := rep.Entries[0]
	if e.Pkg != appID {
		t.Errorf("Entries[0].Pkg = %s, want %s", e.Pkg, appID)
	}
	if !reflect.DeepEqual(e.NormalDev, []string{"b"}) {
		t.Errorf("NormalDev = %v, want [b]", e.NormalDev)
	}
	if len(e.Build) != 0 {
		t.Errorf("Build = %v, want empty", e.Build)
	}
}

func TestComputeOrdering(t *testing.T) {
	// Unordered inputs come out sorted by package and then name.
	sets := &usage.Sets{
		DeclaredNormalDev: setOf(
			key(libID, "zlib"), key(libID, "ahash"),
			key(appID, "serde"),
		),
		UsedNormalDev: setOf(),
		DeclaredBuild: setOf(key(appID, "cc")),
		UsedBuild:     setOf(),
	}

	rep := Compute(sets, func(id workspace.PackageID) string { return "labeled" })
	if len(rep.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(rep.Entries))
	}
	if rep.Entries[0].Pkg != appID || rep.Entries[1].Pkg != libID {
		t.Errorf("entries out of order: %s, %s", rep.Entries[0].Pkg, rep.Entries[1].Pkg)
	}
	if !reflect.DeepEqual(rep.Entries[1].NormalDev, []string{"ahash", "zlib"}) {
		t.Errorf("NormalDev = %v, want sorted [ahash zlib]", rep.Entries[1].NormalDev)
	}
	for _, e := range rep.Entries {
		if e.Label != "labeled" {
			t.Errorf("Label = %q, want labeler output", e.Label)
		}
	}
}

func TestComputeClean(t *testing.T) {
	sets := &usage.Sets{
		DeclaredNormalDev: setOf(key(appID, "serde")),
		UsedNormalDev:     setOf(key(appID, "serde")),
		DeclaredBuild:     setOf(),
		UsedBuild:         setOf(),
	}
	rep := Compute(sets, nil)
	if rep.HasFindings() {
		t.Errorf("HasFindings() = true for clean sets: %+v", rep.Entries)
	}
}
