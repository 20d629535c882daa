package viewer

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	apperrors "github.com/glefebvre/housou/internal/errors"
	"github.com/glefebvre/housou/internal/models"
	"github.com/glefebvre/housou/internal/schedule"
	"github.com/glefebvre/housou/internal/sites"
)

// EmptyDayText is shown when the active tab has no broadcasts
const EmptyDayText = "この日の放送はありません"

// SeasonLabels are the header labels of the selectable seasons
var SeasonLabels = map[models.Season]string{
	models.SeasonAll:    "全て",
	models.SeasonWinter: "冬",
	models.SeasonSpring: "春",
	models.SeasonSummer: "夏",
	models.SeasonAutumn: "秋",
}

// allLabel is the label of the site "all" option
const allLabel = "全て"

// Options are the viewer-side display settings
type Options struct {
	Location    *time.Location
	Width       int
	Breakpoints []schedule.Breakpoint
	Sites       sites.Options
	Now         time.Time
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

// MetadataLookup returns the metadata known for a title, or nil
type MetadataLookup func(title string) *models.UnifiedMetadata

// PageInput is everything needed to build the schedule page
type PageInput struct {
	Config     *models.Config
	Selections models.Selections
	Items      []models.AnimeItem
	Loading    bool
	Err        error
	Query      string
	// Tab is the requested tab; a negative value opens today's weekday
	Tab int
	// PrevTab is the tab shown before this one, negative when unknown
	PrevTab  int
	Metadata MetadataLookup
	Options  Options
}

// SelectOption is one entry of a header select
type SelectOption struct {
	Value    string
	Label    string
	Selected bool
}

// Header holds the year, season and site selects and the search query
type Header struct {
	Years   []SelectOption
	Seasons []SelectOption
	Sites   []SelectOption
	Query   string
}

// Tab is one weekday tab
type Tab struct {
	Index  int
	Label  string
	Name   string
	Count  int
	Active bool
}

// Link is a resolved outbound site link
type Link struct {
	Key   string
	Title string
	URL   string
}

// Card is the compact grid entry of an item
type Card struct {
	Title        string
	TypeLabel    string
	Cover        string
	Score        int
	EpisodeCount int
	Genres       []string
	Links        []Link
	Broadcast    string
	DetailsPath  string
	HasMetadata  bool
}

// Page is the schedule page view model
type Page struct {
	Header      Header
	Selections  models.Selections
	Tabs        []Tab
	ActiveTab   int
	Direction   int
	Slide       string
	ColumnCount int
	Columns     [][]Card
	Empty       bool
	EmptyText   string
	Error       string
	Loading     bool
	Total       int
	Width       int
	Footer      Footer
}

// TabHref returns the link that switches to tab i, remembering the current tab
// so the transition slides the right way.
func (p Page) TabHref(i int) string {
	q := url.Values{}
	q.Set("tab", strconv.Itoa(i))
	q.Set("prev", strconv.Itoa(p.ActiveTab))
	if p.Header.Query != "" {
		q.Set("q", p.Header.Query)
	}
	if p.Width > 0 {
		q.Set("width", strconv.Itoa(p.Width))
	}
	return "/?" + q.Encode()
}

// Layout is the grouping a page renders: the weekday buckets of the filtered
// items, the active tab and the columns of its items.
type Layout struct {
	Buckets schedule.Buckets
	Active  int
	Columns [][]models.AnimeItem
}

// LayoutFor filters and groups the items of in and lays out the active tab
func LayoutFor(in PageInput) Layout {
	opts := in.Options
	loc := opts.location()

	filtered := schedule.Filter(in.Items, in.Selections.Site, in.Query)
	l := Layout{Buckets: schedule.GroupByWeekday(filtered, loc)}

	l.Active = in.Tab
	if l.Active < 0 {
		l.Active = schedule.CurrentDayTab(opts.now(), loc)
	}
	l.Active = schedule.WrapTab(l.Active, schedule.BucketCount)

	if dayItems := l.Buckets[l.Active]; len(dayItems) > 0 {
		l.Columns = schedule.DistributeColumns(dayItems, schedule.ColumnCount(opts.Width, opts.Breakpoints))
	}
	return l
}

// BuildPage shapes the filtered items into tabs and the active tab's columns
func BuildPage(in PageInput) Page {
	opts := in.Options
	cfg := in.Config
	if cfg == nil {
		cfg = &models.Config{}
	}

	layout := LayoutFor(in)
	buckets := layout.Buckets
	active := layout.Active

	page := Page{
		Header:     buildHeader(cfg, in.Selections, in.Query, opts.Sites),
		Selections: in.Selections,
		ActiveTab:  active,
		Loading:    in.Loading,
		Total:      buckets.Total(),
		Width:      opts.Width,
		Footer:     BuildFooter(cfg, opts.now()),
	}
	if in.Err != nil {
		page.Error = apperrors.UserMessage(in.Err)
	}

	if in.PrevTab >= 0 && in.PrevTab != active {
		page.Direction = schedule.TabDirection(in.PrevTab, active, schedule.BucketCount)
		switch page.Direction {
		case 1:
			page.Slide = "slide-next"
		case -1:
			page.Slide = "slide-prev"
		}
	}

	for i := 0; i < schedule.BucketCount; i++ {
		page.Tabs = append(page.Tabs, Tab{
			Index:  i,
			Label:  schedule.WeekdayLabels[i],
			Name:   schedule.WeekdayNames[i],
			Count:  len(buckets[i]),
			Active: i == active,
		})
	}

	if len(layout.Columns) == 0 {
		page.Empty = true
		page.EmptyText = EmptyDayText
		return page
	}

	page.ColumnCount = len(layout.Columns)
	for _, column := range layout.Columns {
		cards := make([]Card, 0, len(column))
		for _, item := range column {
			var md *models.UnifiedMetadata
			if in.Metadata != nil {
				md = in.Metadata(item.Title)
			}
			cards = append(cards, BuildCard(item, in.Selections.Site, cfg.SiteMeta, md, opts))
		}
		page.Columns = append(page.Columns, cards)
	}
	return page
}

func buildHeader(cfg *models.Config, sel models.Selections, query string, siteOpts sites.Options) Header {
	h := Header{Query: query}

	for _, y := range cfg.Years {
		v := strconv.Itoa(y)
		h.Years = append(h.Years, SelectOption{Value: v, Label: v, Selected: v == sel.Year})
	}
	for _, s := range models.Seasons {
		h.Seasons = append(h.Seasons, SelectOption{
			Value:    string(s),
			Label:    SeasonLabels[s],
			Selected: string(s) == sel.Season,
		})
	}

	h.Sites = append(h.Sites, SelectOption{
		Value:    models.SiteAll,
		Label:    allLabel,
		Selected: sel.Site == "" || sel.Site == models.SiteAll,
	})
	for _, opt := range sites.SelectOptions(cfg.SiteMeta, siteOpts) {
		h.Sites = append(h.Sites, SelectOption{Value: opt.Key, Label: opt.Title, Selected: opt.Key == sel.Site})
	}
	return h
}

// BuildCard builds the card of one item. md may be nil, in which case the
// card carries no cover, score, episodes or genres.
func BuildCard(item models.AnimeItem, selectedSite string, meta models.SiteMeta, md *models.UnifiedMetadata, opts Options) Card {
	card := Card{
		Title:       item.Title,
		TypeLabel:   item.Type.Label(),
		DetailsPath: DetailsPath(item.Title),
		Links:       resolveLinks(sites.CardSites(item, selectedSite, meta, opts.Sites), meta),
	}

	if t, ok := schedule.ParseBegin(item.Begin, opts.location()); ok {
		card.Broadcast = t.In(opts.location()).Format("15:04")
	}

	if md != nil {
		card.HasMetadata = true
		card.Cover = md.CoverURL()
		card.Score = md.Score()
		if md.Episodes != nil {
			card.EpisodeCount = *md.Episodes
		}
		card.Genres = md.TopGenres(2)
	}
	return card
}

func resolveLinks(refs []models.SiteRef, meta models.SiteMeta) []Link {
	links := make([]Link, 0, len(refs))
	for _, ref := range refs {
		u := sites.ResolveURL(ref, meta)
		if u == "" {
			continue
		}
		links = append(links, Link{Key: ref.Site, Title: meta.Title(ref.Site), URL: u})
	}
	return links
}

// DetailsPath returns the path of the details page of title
func DetailsPath(title string) string {
	return "/details?" + url.Values{"title": {title}}.Encode()
}

// EpisodeLabel formats an episode count the way cards show it
func EpisodeLabel(n int) string {
	return fmt.Sprintf("%d話", n)
}
