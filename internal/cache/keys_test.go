package cache

import "testing"

func TestNormalizeQuery(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Ripperdoc", "ripperdoc"},
		{" Ripperdoc ", "ripperdoc"},
		{"Johnny   Silverhand", "johnny silverhand"},
		{"\tNight  City\n", "night city"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeQuery(tc.in); got != tc.want {
			t.Errorf("NormalizeQuery(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestKeyConstruction(t *testing.T) {
	if got := CategoryKey("characters"); got != "category:characters" {
		t.Errorf("CategoryKey = %q", got)
	}
	if got := ItemKey("characters", "Judy Alvarez"); got != "item:characters:Judy Alvarez" {
		t.Errorf("ItemKey = %q", got)
	}
}

func TestSearchKeyCollision(t *testing.T) {
	// Queries differing only in case or whitespace must share a cache key.
	if SearchKey(" Ripperdoc ", nil) != SearchKey("ripperdoc", nil) {
		t.Error("expected case/whitespace-insensitive queries to collide")
	}
	if SearchKey("RIPPER  DOC", nil) != SearchKey("ripper doc", nil) {
		t.Error("expected collapsed whitespace queries to collide")
	}
}

func TestSearchKeyFilters(t *testing.T) {
	unfiltered := SearchKey("ripperdoc", nil)
	filtered := SearchKey("ripperdoc", []string{"characters"})
	if unfiltered == filtered {
		t.Error("filtered and unfiltered requests must not share a cache key")
	}

	// Filter order must not matter.
	ab := SearchKey("ripperdoc", []string{"characters", "vehicles"})
	ba := SearchKey("ripperdoc", []string{"vehicles", "characters"})
	if ab != ba {
		t.Errorf("filter order changed the key: %q vs %q", ab, ba)
	}

	other := SearchKey("ripperdoc", []string{"weapons"})
	if ab == other {
		t.Error("different filter sets must not collide")
	}
}
