package library

import (
	"testing"

	"github.com/google/uuid"
)

func TestAllReturnsSortedUniqueEntries(t *testing.T) {
	entries := All()
	if len(entries) == 0 {
		t.Fatal("expected at least one cataloged example")
	}
	seen := map[string]bool{}
	for i, e := range entries {
		if seen[e.ID.String()] {
			t.Fatalf("duplicate id %s", e.ID)
		}
		seen[e.ID.String()] = true
		if i > 0 && entries[i-1].Name > e.Name {
			t.Fatalf("entries not sorted by name: %q before %q", entries[i-1].Name, e.Name)
		}
	}
}

func TestGetRoundTrips(t *testing.T) {
	entries := All()
	first := entries[0]
	got, ok := Get(first.ID)
	if !ok {
		t.Fatalf("Get(%s) not found", first.ID)
	}
	if got.Name != first.Name {
		t.Fatalf("Get returned name %q, want %q", got.Name, first.Name)
	}
}

func TestGetUnknownID(t *testing.T) {
	if _, ok := Get(uuid.New()); ok {
		t.Fatal("expected a freshly-generated id to be unknown")
	}
}
