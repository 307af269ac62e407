package rotation

import (
	"testing"
)

func TestNormalizeTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"example.com", "https://example.com", false},
		{"http://example.com/path", "http://example.com/path", false},
		{"https://example.com:8443", "https://example.com:8443", false},
		{"", "", true},
		{"https://", "", true},
	}

	for _, tt := range tests {
		got, err := NormalizeTarget(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NormalizeTarget(%q) expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeTarget(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeTarget(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTargetSelectorSingle(t *testing.T) {
	s := NewTargetSelector(NewRand(1), "", []string{"example.com"})

	for i := 0; i < 10; i++ {
		got, ok := s.Select()
		if !ok {
			t.Fatal("Select returned no target")
		}
		if got != "https://example.com" {
			t.Fatalf("Select = %q, want https://example.com", got)
		}
	}
	if s.HasMultiple() {
		t.Error("HasMultiple should be false for a single target")
	}
}

func TestTargetSelectorEmpty(t *testing.T) {
	s := NewTargetSelector(NewRand(1), "", nil)

	if !s.Empty() {
		t.Error("Empty should be true with no candidates")
	}
	if _, ok := s.Select(); ok {
		t.Error("Select on empty set should return ok=false")
	}
}

func TestTargetSelectorDropsInvalid(t *testing.T) {
	s := NewTargetSelector(NewRand(1), "", []string{"https://", "", "example.org"})

	if s.Size() != 1 {
		t.Fatalf("Size = %d, want 1", s.Size())
	}
	got, ok := s.Select()
	if !ok || got != "https://example.org" {
		t.Fatalf("Select = %q, %v", got, ok)
	}
}

func TestTargetSelectorMultiple(t *testing.T) {
	s := NewTargetSelector(NewRand(42), "example.com", []string{"example.org", "example.net"})

	if !s.HasMultiple() {
		t.Error("HasMultiple should be true")
	}

	seen := make(map[string]int)
	for i := 0; i < 3000; i++ {
		got, ok := s.Select()
		if !ok {
			t.Fatal("Select returned no target")
		}
		seen[got]++
	}

	if len(seen) != 3 {
		t.Fatalf("expected all 3 targets to be selected, saw %d", len(seen))
	}
	for url, count := range seen {
		if count < 700 {
			t.Errorf("target %s selected only %d/3000 times, selection not roughly uniform", url, count)
		}
	}
}

func TestTargetSelectorDistinctCount(t *testing.T) {
	// Duplicate entries do not make the set "multiple"
	s := NewTargetSelector(NewRand(1), "example.com", []string{"example.com"})
	if s.HasMultiple() {
		t.Error("duplicates of one URL should not count as multiple distinct targets")
	}
}
