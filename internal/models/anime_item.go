package models

// ItemType is the broadcast category of an item. Unknown values pass through untouched.
type ItemType string

const (
	ItemTypeTV      ItemType = "tv"
	ItemTypeMovie   ItemType = "movie"
	ItemTypeOVA     ItemType = "ova"
	ItemTypeONA     ItemType = "ona"
	ItemTypeSpecial ItemType = "special"
	ItemTypeWeb     ItemType = "web"
)

var itemTypeLabels = map[ItemType]string{
	ItemTypeTV:      "TV",
	ItemTypeMovie:   "Movie",
	ItemTypeOVA:     "OVA",
	ItemTypeONA:     "ONA",
	ItemTypeSpecial: "Special",
}

// Label returns the display label of the type, or the raw value for types without one
func (t ItemType) Label() string {
	if label, ok := itemTypeLabels[t]; ok {
		return label
	}
	return string(t)
}

// TitleTranslate maps a language code (ja, en, zh-Hans, zh-Hant) to localized titles
type TitleTranslate map[string][]string

// AnimeItem is one broadcast entry of a season
type AnimeItem struct {
	Title          string         `json:"title"`
	TitleTranslate TitleTranslate `json:"titleTranslate,omitempty"`
	Type           ItemType       `json:"type"`
	Lang           string         `json:"lang,omitempty"`
	OfficialSite   string         `json:"officialSite,omitempty"`
	Begin          string         `json:"begin"`
	Broadcast      string         `json:"broadcast,omitempty"`
	End            string         `json:"end,omitempty"`
	Comment        string         `json:"comment,omitempty"`
	Sites          []SiteRef      `json:"sites,omitempty"`
}

// SiteByKey returns the first site reference with the given key
func (i AnimeItem) SiteByKey(key string) (SiteRef, bool) {
	for _, s := range i.Sites {
		if s.Site == key {
			return s, true
		}
	}
	return SiteRef{}, false
}

// HasSite reports whether the item lists the given site key
func (i AnimeItem) HasSite(key string) bool {
	_, ok := i.SiteByKey(key)
	return ok
}

// TMDBID returns the id of the "tmdb" site entry, if any
func (i AnimeItem) TMDBID() string {
	if s, ok := i.SiteByKey("tmdb"); ok {
		return s.ID
	}
	return ""
}

// FindItem returns the item with the given title
func FindItem(items []AnimeItem, title string) (AnimeItem, bool) {
	for _, item := range items {
		if item.Title == title {
			return item, true
		}
	}
	return AnimeItem{}, false
}
