package models

import (
	"testing"
)

func TestSelectionRecord_TableName(t *testing.T) {
	record := SelectionRecord{}
	expected := "selections"
	if record.TableName() != expected {
		t.Errorf("expected table name %s, got %s", expected, record.TableName())
	}
}

func TestItemType_Label(t *testing.T) {
	tests := []struct {
		itemType ItemType
		expected string
	}{
		{ItemTypeTV, "TV"},
		{ItemTypeMovie, "Movie"},
		{ItemTypeOVA, "OVA"},
		{ItemTypeONA, "ONA"},
		{ItemTypeSpecial, "Special"},
		{ItemTypeWeb, "web"},
		{ItemType("radio"), "radio"},
	}

	for _, tt := range tests {
		t.Run(string(tt.itemType), func(t *testing.T) {
			if got := tt.itemType.Label(); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestSeason_Valid(t *testing.T) {
	for _, s := range Seasons {
		if !s.Valid() {
			t.Errorf("expected %s to be valid", s)
		}
	}
	for _, s := range []Season{"", "autumn", "Fall"} {
		if s.Valid() {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestParseSeason(t *testing.T) {
	tests := []struct {
		input    string
		expected Season
		ok       bool
	}{
		{"spring", SeasonSpring, true},
		{"AUTUMN", SeasonAutumn, true},
		{"Winter", SeasonWinter, true},
		{"All", SeasonAll, true},
		{"fall", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseSeason(tt.input)
			if got != tt.expected || ok != tt.ok {
				t.Errorf("expected (%q, %v), got (%q, %v)", tt.expected, tt.ok, got, ok)
			}
		})
	}
}

func TestAnimeItem_Sites(t *testing.T) {
	item := AnimeItem{
		Title: "Frieren",
		Sites: []SiteRef{
			{Site: "abema", ID: "26-100"},
			{Site: "tmdb", ID: "209867"},
			{Site: "abema", ID: "second"},
		},
	}

	ref, ok := item.SiteByKey("abema")
	if !ok || ref.ID != "26-100" {
		t.Errorf("expected first abema entry, got %+v (found %v)", ref, ok)
	}
	if !item.HasSite("tmdb") {
		t.Error("expected item to list tmdb")
	}
	if item.HasSite("netflix") {
		t.Error("expected item not to list netflix")
	}
	if item.TMDBID() != "209867" {
		t.Errorf("expected tmdb id 209867, got %s", item.TMDBID())
	}
	if (AnimeItem{}).TMDBID() != "" {
		t.Error("expected empty tmdb id for an item without sites")
	}
}

func TestFindItem(t *testing.T) {
	items := []AnimeItem{{Title: "Frieren"}, {Title: "Spy x Family"}}

	item, ok := FindItem(items, "Spy x Family")
	if !ok || item.Title != "Spy x Family" {
		t.Errorf("expected to find Spy x Family, got %+v", item)
	}
	if _, ok := FindItem(items, "frieren"); ok {
		t.Error("expected title lookup to be exact")
	}
}

func TestSiteMeta_Title(t *testing.T) {
	meta := SiteMeta{
		"abema":    {Title: "ABEMA"},
		"untitled": {},
	}

	if got := meta.Title("abema"); got != "ABEMA" {
		t.Errorf("expected ABEMA, got %s", got)
	}
	if got := meta.Title("untitled"); got != "untitled" {
		t.Errorf("expected key fallback, got %s", got)
	}
	if got := SiteMeta(nil).Title("netflix"); got != "netflix" {
		t.Errorf("expected key fallback on nil meta, got %s", got)
	}
}

func TestConfig_Years(t *testing.T) {
	cfg := &Config{Years: []int{2023, 2025, 2024}}

	if !cfg.HasYear(2025) || cfg.HasYear(2022) {
		t.Error("unexpected HasYear result")
	}
	latest, ok := cfg.LatestYear()
	if !ok || latest != 2025 {
		t.Errorf("expected latest year 2025, got %d", latest)
	}
	if _, ok := (&Config{}).LatestYear(); ok {
		t.Error("expected no latest year without years")
	}
}

func TestUnifiedMetadata_Helpers(t *testing.T) {
	large := "large.jpg"
	xl := "xl.jpg"
	score := 87

	md := &UnifiedMetadata{
		CoverImage:   UniversalCoverImage{Large: &large, ExtraLarge: &xl},
		AverageScore: &score,
		Genres:       []string{"Adventure", "Drama", "Fantasy"},
	}
	if md.CoverURL() != xl {
		t.Errorf("expected extra large cover, got %s", md.CoverURL())
	}
	if md.Score() != 87 {
		t.Errorf("expected score 87, got %d", md.Score())
	}
	if got := md.TopGenres(2); len(got) != 2 || got[1] != "Drama" {
		t.Errorf("unexpected genres %v", got)
	}

	md.CoverImage.ExtraLarge = nil
	if md.CoverURL() != large {
		t.Errorf("expected large cover fallback, got %s", md.CoverURL())
	}

	var empty *UnifiedMetadata
	if empty.CoverURL() != "" || empty.Score() != 0 || empty.TopGenres(2) != nil {
		t.Error("expected zero values from nil metadata")
	}
}
