package models

// SiteType is the canonical category of a site
type SiteType string

const (
	SiteTypeInfo     SiteType = "info"
	SiteTypeOnair    SiteType = "onair"
	SiteTypeResource SiteType = "resource"
)

// SiteRef is a single streaming or information outlet for an item
type SiteRef struct {
	Site      string   `json:"site"`
	ID        string   `json:"id,omitempty"`
	URL       string   `json:"url,omitempty"`
	Begin     string   `json:"begin,omitempty"`
	Broadcast string   `json:"broadcast,omitempty"`
	Comment   string   `json:"comment,omitempty"`
	Regions   []string `json:"regions,omitempty"`
	Type      SiteType `json:"type,omitempty"`
}

// SiteMetaItem is the display metadata of a site key
type SiteMetaItem struct {
	Title       string   `json:"title"`
	URLTemplate string   `json:"urlTemplate,omitempty"`
	Type        SiteType `json:"type,omitempty"`
	Regions     []string `json:"regions,omitempty"`
}

// SiteMeta maps a site key to its display metadata
type SiteMeta map[string]SiteMetaItem

// Lookup returns the metadata of a site key
func (m SiteMeta) Lookup(key string) (SiteMetaItem, bool) {
	if m == nil {
		return SiteMetaItem{}, false
	}
	item, ok := m[key]
	return item, ok
}

// Title returns the display title of a site key, falling back to the key itself
func (m SiteMeta) Title(key string) string {
	if item, ok := m.Lookup(key); ok && item.Title != "" {
		return item.Title
	}
	return key
}
