package roster

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClean(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Henry   Li ", "Henry Li"},
		{"Henry (absent)", "Henry"},
		{"Selina Wang（王）", "Selina Wang"},
		{"Amy!!", "Amy"},
		{"Henry L.", "Henry L"},
		{"Café", "Café"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Clean(tt.in); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("HENRY  li") != Normalize("henry Li.") {
		t.Errorf("%q != %q", Normalize("HENRY  li"), Normalize("henry Li."))
	}
	if Normalize("Cafe\u0301") != Normalize("CAF\u00c9") {
		t.Error("composed and decomposed forms should match")
	}
}

func TestResolveEmptyRoster(t *testing.T) {
	r, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"henry li", "Henry Li", true},
		{"SELINA (late)", "Selina", true},
		{"  ", "", false},
	}
	for _, tt := range tests {
		got, ok := r.Resolve(tt.raw)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Resolve(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}

	var nilRoster *Roster
	if got, ok := nilRoster.Resolve("amy"); !ok || got != "Amy" {
		t.Errorf("nil roster Resolve = (%q, %v)", got, ok)
	}
}

func TestLoadAndResolve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	data := "Henry Li:\n  - Henry\n  - Henry L.\nSelina Wang: [Selina, Sel]\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if r.Len() != 6 {
		t.Errorf("Len() = %d, want 6", r.Len())
	}

	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"Henry", "Henry Li", true},
		{"henry l", "Henry Li", true},
		{"HENRY LI", "Henry Li", true},
		{"sel (absent)", "Selina Wang", true},
		{"Bob", "", false},
	}
	for _, tt := range tests {
		got, ok := r.Resolve(tt.raw)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Resolve(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNewRejectsAmbiguousAlias(t *testing.T) {
	_, err := New(map[string][]string{
		"Henry Li":   {"Henry"},
		"Henry Wang": {"henry"},
	})
	if err == nil {
		t.Fatal("expected error for alias shared by two students")
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("- just\n- a list\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for a list document")
	}
}
