package ocr

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultLanguage is loaded when a LanguageSpec is empty.
const DefaultLanguage = "eng"

// Language is one entry of a language spec.
type Language struct {
	// Code is the traineddata name, usually ISO 639-3 ("eng", "chi_sim").
	Code string
	// Suppress marks a "~" entry: the language is excluded even if another
	// loaded language would pull it in as a dependency.
	Suppress bool
}

func (l Language) String() string {
	if l.Suppress {
		return "~" + l.Code
	}
	return l.Code
}

// LanguageSpec is the parsed form of "[~]lang[+[~]lang...]". "hin+~eng"
// loads Hindi alone even when Hindi's data bundles English.
type LanguageSpec []Language

// ParseLanguageSpec parses a "+"-joined language list.
func ParseLanguageSpec(s string) (LanguageSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "+")
	spec := make(LanguageSpec, 0, len(parts))
	for _, p := range parts {
		l := Language{Code: p}
		if strings.HasPrefix(p, "~") {
			l.Suppress = true
			l.Code = p[1:]
		}
		if l.Code == "" {
			return nil, fmt.Errorf("empty language entry in %q", s)
		}
		if strings.ContainsAny(l.Code, " \t~+/\\") {
			return nil, fmt.Errorf("invalid language code %q in %q", l.Code, s)
		}
		spec = append(spec, l)
	}
	return spec, nil
}

// MustLanguages builds a spec from plain codes, panicking on invalid input.
// Intended for constants in tests and defaults.
func MustLanguages(codes ...string) LanguageSpec {
	spec, err := ParseLanguageSpec(strings.Join(codes, "+"))
	if err != nil {
		panic(err)
	}
	return spec
}

// String renders the spec in the form the native Init expects. An empty
// spec renders as DefaultLanguage.
func (s LanguageSpec) String() string {
	if len(s) == 0 {
		return DefaultLanguage
	}
	parts := make([]string, len(s))
	for i, l := range s {
		parts[i] = l.String()
	}
	return strings.Join(parts, "+")
}

// Required returns the codes that must have traineddata available.
func (s LanguageSpec) Required() []string {
	if len(s) == 0 {
		return []string{DefaultLanguage}
	}
	var codes []string
	for _, l := range s {
		if !l.Suppress {
			codes = append(codes, l.Code)
		}
	}
	return codes
}

// missingLanguages returns the required codes with no traineddata under
// dataPath. Both the tessdata directory itself and its parent are accepted,
// matching what the native Init accepts.
func missingLanguages(dataPath string, spec LanguageSpec) []string {
	var missing []string
	for _, code := range spec.Required() {
		name := code + ".traineddata"
		candidates := []string{
			filepath.Join(dataPath, name),
			filepath.Join(dataPath, "tessdata", name),
		}
		found := false
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, code)
		}
	}
	return missing
}
