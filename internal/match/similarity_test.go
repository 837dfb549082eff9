package match

import (
	"testing"

	"github.com/sydlexius/tributary/internal/dto"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"abc", "abc", 1},
		{"abc", "", 0},
		{"kitten", "sitting", 1 - 3.0/7.0},
		{"café", "cafe", 0.75},
	}
	for _, tt := range tests {
		if got := ratio(tt.a, tt.b); !approx(got, tt.want) {
			t.Errorf("ratio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
	if ratio("kitten", "sitting") != ratio("sitting", "kitten") {
		t.Error("ratio is not symmetric")
	}
}

func TestCanonicalText(t *testing.T) {
	tests := map[string]string{
		"Paranoid Android (2017 Remaster)":   "paranoid android",
		"Paranoid Android - Remastered 2011": "paranoid android",
		"Discovery [Deluxe Edition]":         "discovery",
		"Song (Acoustic)":                    "song acoustic",
		"Halo (feat. Someone)":               "halo",
		"  Mötley   Crüe ":                   "motley crue",
		"Don't Stop Me Now":                  "don t stop me now",
		"Live Forever":                       "live forever",
	}
	for in, want := range tests {
		if got := canonicalText(in); got != want {
			t.Errorf("canonicalText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestJaccard(t *testing.T) {
	a := trigrams("radiohead")
	if got := jaccard(a, trigrams("radiohead")); got != 1 {
		t.Errorf("identical sets: got %v, want 1", got)
	}
	if jaccard(a, trigrams("portishead")) >= jaccard(a, trigrams("radioheads")) {
		t.Error("expected radioheads to be closer than portishead")
	}
	if got := jaccard(trigrams("abc"), trigrams("xyz")); got != 0 {
		t.Errorf("disjoint sets: got %v, want 0", got)
	}
}

func TestSetHelpers(t *testing.T) {
	if !subset(nil, []string{"a"}) {
		t.Error("empty set should be a subset")
	}
	if !subset([]string{"deluxe"}, []string{"deluxe", "remaster"}) {
		t.Error("expected deluxe to be a subset")
	}
	if subset([]string{"live"}, []string{"deluxe"}) {
		t.Error("live is not a subset of deluxe")
	}
	tests := []struct {
		a, b []string
		want int
	}{
		{[]string{"a", "b"}, []string{"a", "b"}, 0},
		{[]string{"a"}, []string{"b"}, 2},
		{nil, []string{"deluxe"}, 1},
	}
	for _, tt := range tests {
		if got := symmetricDifference(tt.a, tt.b); got != tt.want {
			t.Errorf("symmetricDifference(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestComputeRelevanceScore(t *testing.T) {
	base := trk("slskd", "", "Paranoid Android", "Radiohead")
	withFile := func(format string, kbps *int) dto.ProviderTrack {
		tr := base
		tr.Candidates = []dto.TrackCandidate{{Title: "Paranoid Android", Source: "slskd", Format: format, BitrateKbps: kbps}}
		return tr
	}

	const q = "Radiohead - Paranoid Android"
	plain := ComputeRelevanceScore(q, base)
	tests := []struct {
		name  string
		track dto.ProviderTrack
		want  float64
	}{
		{"no file", base, 0.95},
		{"flac", withFile("flac", nil), 1.0},
		{"mp3 320", withFile("mp3", dto.Int(320)), 0.98},
		{"mp3 96", withFile("mp3", dto.Int(96)), 0.90},
	}
	for _, tt := range tests {
		if got := ComputeRelevanceScore(q, tt.track); !approx(got, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}

	other := trk("deezer", "", "Karma Police", "Radiohead")
	if ComputeRelevanceScore(q, other) >= plain {
		t.Error("different title should score lower")
	}
	if got := ComputeRelevanceScore("  ", base); got != 0 {
		t.Errorf("blank query: got %v, want 0", got)
	}
}
