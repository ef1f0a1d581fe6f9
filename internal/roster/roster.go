// Package roster resolves the names instructors write in feedback documents
// to one canonical spelling per student.
//
// A roster file is YAML mapping each canonical name to its known aliases:
//
//	Henry Li:
//	  - Henry
//	  - Henry L.
//	Selina Wang: [Selina, Sel]
package roster

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Roster maps normalized names and aliases to canonical names. The zero value
// is an empty roster.
type Roster struct {
	names map[string]string
}

// New builds a roster from canonical names and their aliases.
func New(entries map[string][]string) (*Roster, error) {
	r := &Roster{names: make(map[string]string)}
	for canonical, aliases := range entries {
		canonical = Clean(canonical)
		if canonical == "" {
			return nil, fmt.Errorf("roster: empty canonical name")
		}
		for _, name := range append([]string{canonical}, aliases...) {
			key := Normalize(name)
			if key == "" {
				continue
			}
			if prev, ok := r.names[key]; ok && prev != canonical {
				return nil, fmt.Errorf("roster: alias %q maps to both %q and %q", name, prev, canonical)
			}
			r.names[key] = canonical
		}
	}
	return r, nil
}

// Load reads a roster file. An empty path yields an empty roster.
func Load(path string) (*Roster, error) {
	if path == "" {
		return &Roster{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	var entries map[string][]string
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", path, err)
	}
	return New(entries)
}

// Len returns the number of distinct names and aliases known.
func (r *Roster) Len() int { return len(r.names) }

// Resolve returns the canonical name for raw. With an empty roster every
// non-empty name resolves to its cleaned, title-cased form; otherwise names
// not in the roster are unresolved.
func (r *Roster) Resolve(raw string) (string, bool) {
	clean := Clean(raw)
	if clean == "" {
		return "", false
	}
	if r == nil || len(r.names) == 0 {
		return cases.Title(language.English).String(clean), true
	}
	name, ok := r.names[Normalize(clean)]
	return name, ok
}

var parenthetical = regexp.MustCompile(`\s*[(（][^)）]*[)）]`)

// Clean normalizes a name's form without changing its case: NFC, no
// parenthesized notes, no trailing punctuation, single spaces.
func Clean(name string) string {
	s := norm.NFC.String(name)
	s = parenthetical.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}

// Normalize returns the lookup key for a name: Clean plus case folding.
func Normalize(name string) string {
	return cases.Fold().String(Clean(name))
}
