package intercept

import (
	"reflect"
	"testing"

	"github.com/crateprune/crateprune/pkg/errors"
)

const pkgID = "app 0.1.0 (path+file:///ws/app)"

func fullArgs() []string {
	return []string{
		"--crate-name", "app",
		"/ws/app/src/lib.rs",
		"--crate-type", "lib",
		"--emit=metadata",
		"-C", "extra-filename=-abc123",
		"--out-dir", "/ws/target/debug/deps",
		"--extern", "serde=/ws/target/debug/deps/libserde-1.rmeta",
		"--extern", "fhash=/ws/target/debug/deps/libfancy_hash-2.rmeta",
	}
}

func TestParseInvocation(t *testing.T) {
	rec, err := ParseInvocation(pkgID, false, fullArgs())
	if err != nil {
		t.Fatalf("ParseInvocation() error = %v", err)
	}

	if rec.Pkg != pkgID {
		t.Errorf("Pkg = %q", rec.Pkg)
	}
	if rec.CrateName != "app" {
		t.Errorf("CrateName = %q, want app", rec.CrateName)
	}
	if rec.CrateType != "lib" {
		t.Errorf("CrateType = %q, want lib", rec.CrateType)
	}
	if rec.ExtraFilename != "-abc123" {
		t.Errorf("ExtraFilename = %q, want -abc123", rec.ExtraFilename)
	}
	if rec.OutDir != "/ws/target/debug/deps" {
		t.Errorf("OutDir = %q", rec.OutDir)
	}
	if rec.CapLintsAllow {
		t.Error("CapLintsAllow = true, want false")
	}

	want := []Extern{
		{Name: "serde", Path: "/ws/target/debug/deps/libserde-1.rmeta"},
		{Name: "fhash", Path: "/ws/target/debug/deps/libfancy_hash-2.rmeta"},
	}
	if !reflect.DeepEqual(rec.Externs, want) {
		t.Errorf("Externs = %v, want %v", rec.Externs, want)
	}
}

func TestParseInvocationCapLints(t *testing.T) {
	args := append(fullArgs(), "--cap-lints", "allow")
	rec, err := ParseInvocation(pkgID, false, args)
	if err != nil {
		t.Fatalf("ParseInvocation() error = %v", err)
	}
	if !rec.CapLintsAllow {
		t.Error("CapLintsAllow = false, want true")
	}
}

func TestParseInvocationDefaultsToBin(t *testing.T) {
	args := []string{
		"--crate-name", "build_script_build",
		"/ws/app/build.rs",
		"-C", "extra-filename=-bs1",
		"--out-dir", "/ws/target/debug/deps",
	}
	rec, err := ParseInvocation(pkgID, true, args)
	if err != nil {
		t.Fatalf("ParseInvocation() error = %v", err)
	}
	if rec.CrateType != "bin" {
		t.Errorf("CrateType = %q, want bin", rec.CrateType)
	}
	if !rec.CustomBuild {
		t.Error("CustomBuild = false, want true")
	}
}

func TestParseInvocationMissingFields(t *testing.T) {
	tests := []struct {
		name string
		drop string
	}{
		{"missing crate name", "--crate-name"},
		{"missing extra-filename", "-C"},
		{"missing out-dir", "--out-dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var args []string
			full := fullArgs()
			for i := 0; i < len(full); i++ {
				if full[i] == tt.drop {
					i++ // skip the flag's value too
					continue
				}
				args = append(args, full[i])
			}

			_, err := ParseInvocation(pkgID, false, args)
			if err == nil {
				t.Fatal("ParseInvocation() error = nil, want error")
			}
			if !errors.Is(err, errors.ErrCodeInvalidInvocation) {
				t.Errorf("error code = %v, want %v", errors.GetCode(err), errors.ErrCodeInvalidInvocation)
			}
		})
	}
}

func TestParseInvocationInvalidExtern(t *testing.T) {
	args := append(fullArgs(), "--extern", "no-equals-sign")
	_, err := ParseInvocation(pkgID, false, args)
	if err == nil {
		t.Fatal("ParseInvocation() error = nil, want error")
	}
	if !errors.Is(err, errors.ErrCodeInvalidInvocation) {
		t.Errorf("error code = %v, want %v", errors.GetCode(err), errors.ErrCodeInvalidInvocation)
	}
}
