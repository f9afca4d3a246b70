package ocr

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseLanguageSpec(t *testing.T) {
	spec, err := ParseLanguageSpec("hin+~eng")
	if err != nil {
		t.Fatalf("ParseLanguageSpec failed: %v", err)
	}
	if len(spec) != 2 || spec[0].Code != "hin" || spec[0].Suppress || spec[1].Code != "eng" || !spec[1].Suppress {
		t.Errorf("spec = %+v", spec)
	}
	if spec.String() != "hin+~eng" {
		t.Errorf("String() = %q", spec.String())
	}
	if req := spec.Required(); len(req) != 1 || req[0] != "hin" {
		t.Errorf("Required() = %v, want [hin]", req)
	}
}

func TestParseLanguageSpec_Empty(t *testing.T) {
	spec, err := ParseLanguageSpec("  ")
	if err != nil || spec != nil {
		t.Fatalf("ParseLanguageSpec(blank) = %v, %v", spec, err)
	}
	if spec.String() != DefaultLanguage {
		t.Errorf("empty spec renders %q, want %q", spec.String(), DefaultLanguage)
	}
	if req := spec.Required(); len(req) != 1 || req[0] != DefaultLanguage {
		t.Errorf("Required() = %v", req)
	}
}

func TestParseLanguageSpec_Invalid(t *testing.T) {
	for _, s := range []string{"eng++deu", "~", "eng+", "en g", "a/b"} {
		if _, err := ParseLanguageSpec(s); err == nil {
			t.Errorf("ParseLanguageSpec(%q) accepted", s)
		}
	}
}

func TestMustLanguages_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustLanguages did not panic on an empty code")
		}
	}()
	MustLanguages("eng", "")
}

func TestMissingLanguages(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "eng.traineddata"), nil, 0o644)

	missing := missingLanguages(dir, MustLanguages("eng", "deu", "~fra"))
	if len(missing) != 1 || missing[0] != "deu" {
		t.Errorf("missing = %v, want [deu]", missing)
	}
}
