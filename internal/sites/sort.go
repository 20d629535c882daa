package sites

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/glefebvre/housou/internal/models"
)

// bangumiKey is the aggregator entry shown after every other site of the same rank
const bangumiKey = "bangumi"

// Options controls ranking and title comparison
type Options struct {
	Policy Policy
	Locale language.Tag
}

// DefaultOptions ranks by region and compares titles as Japanese
func DefaultOptions() Options {
	return Options{Policy: PolicyRegion, Locale: language.Japanese}
}

// NewOptions builds Options from configuration strings
func NewOptions(policy, locale string) (Options, error) {
	p, err := ParsePolicy(policy)
	if err != nil {
		return Options{}, err
	}
	tag := language.Japanese
	if locale != "" {
		if tag, err = language.Parse(locale); err != nil {
			return Options{}, err
		}
	}
	return Options{Policy: p, Locale: tag}, nil
}

type sortEntry struct {
	ref     models.SiteRef
	rank    int
	bangumi bool
	title   string
}

// Sort returns the references ordered for display. The input is not modified.
//
// Order: rank, then "bangumi" after its rank peers, then display title under the
// locale's collation, then the raw site key. Equal entries keep their input order.
func Sort(refs []models.SiteRef, meta models.SiteMeta, opts Options) []models.SiteRef {
	rank := opts.Policy.Ranker()
	entries := make([]sortEntry, len(refs))
	for i, ref := range refs {
		entries[i] = sortEntry{
			ref:     ref,
			rank:    rank(ref, meta),
			bangumi: ref.Site == bangumiKey,
			title:   meta.Title(ref.Site),
		}
	}

	// A Collator is not safe for concurrent use, so each call gets its own.
	col := collate.New(opts.Locale)
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		if a.bangumi != b.bangumi {
			return b.bangumi
		}
		if c := col.CompareString(a.title, b.title); c != 0 {
			return c < 0
		}
		return a.ref.Site < b.ref.Site
	})

	out := make([]models.SiteRef, len(entries))
	for i, e := range entries {
		out[i] = e.ref
	}
	return out
}

// ResolveURL returns the link target of a reference: its own url, else the
// SiteMeta template with {{id}} expanded, else "".
func ResolveURL(ref models.SiteRef, meta models.SiteMeta) string {
	if ref.URL != "" {
		return ref.URL
	}
	m, ok := meta.Lookup(ref.Site)
	if !ok || m.URLTemplate == "" {
		return ""
	}
	return strings.Replace(m.URLTemplate, "{{id}}", ref.ID, 1)
}

// EffectiveType returns the reference's type, falling back to its SiteMeta type
func EffectiveType(ref models.SiteRef, meta models.SiteMeta) models.SiteType {
	if ref.Type != "" {
		return ref.Type
	}
	if m, ok := meta.Lookup(ref.Site); ok {
		return m.Type
	}
	return ""
}

// CardSites returns the streaming links shown on a compact card: only "onair"
// sites, restricted to selectedSite unless it is "all" or empty, sorted.
func CardSites(item models.AnimeItem, selectedSite string, meta models.SiteMeta, opts Options) []models.SiteRef {
	var picked []models.SiteRef
	for _, ref := range item.Sites {
		if selectedSite != "" && selectedSite != models.SiteAll && ref.Site != selectedSite {
			continue
		}
		if EffectiveType(ref, meta) != models.SiteTypeOnair {
			continue
		}
		picked = append(picked, ref)
	}
	return Sort(picked, meta, opts)
}

// Group is a labelled set of links in the details view
type Group struct {
	Type  string
	Label string
	Sites []models.SiteRef
}

var groupOrder = []struct {
	siteType models.SiteType
	label    string
}{
	{models.SiteTypeOnair, "配信"},
	{models.SiteTypeInfo, "情報"},
	{models.SiteTypeResource, "リソース"},
}

// GroupByType sorts every reference and splits them by SiteMeta type.
// Sites whose type is unknown land in a trailing "other" group. Empty groups are omitted.
func GroupByType(refs []models.SiteRef, meta models.SiteMeta, opts Options) []Group {
	sorted := Sort(refs, meta, opts)

	var groups []Group
	known := make(map[models.SiteType]bool, len(groupOrder))
	for _, g := range groupOrder {
		known[g.siteType] = true
		var picked []models.SiteRef
		for _, ref := range sorted {
			if EffectiveType(ref, meta) == g.siteType {
				picked = append(picked, ref)
			}
		}
		if len(picked) > 0 {
			groups = append(groups, Group{Type: string(g.siteType), Label: g.label, Sites: picked})
		}
	}

	var other []models.SiteRef
	for _, ref := range sorted {
		if !known[EffectiveType(ref, meta)] {
			other = append(other, ref)
		}
	}
	if len(other) > 0 {
		groups = append(groups, Group{Type: "other", Label: "その他", Sites: other})
	}
	return groups
}

// Option is a selectable site in the header
type Option struct {
	Key   string
	Title string
}

// SelectOptions lists every SiteMeta key ordered by collated display title
func SelectOptions(meta models.SiteMeta, opts Options) []Option {
	out := make([]Option, 0, len(meta))
	for key := range meta {
		out = append(out, Option{Key: key, Title: meta.Title(key)})
	}

	col := collate.New(opts.Locale)
	sort.Slice(out, func(i, j int) bool {
		if c := col.CompareString(out[i].Title, out[j].Title); c != 0 {
			return c < 0
		}
		return out[i].Key < out[j].Key
	})
	return out
}
