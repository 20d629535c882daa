package viewer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/glefebvre/housou/internal/models"
	"github.com/glefebvre/housou/internal/schedule"
	"github.com/glefebvre/housou/internal/sites"
)

const (
	detailGenres   = 3
	detailCast     = 6
	detailStaff    = 12
	officialLabel  = "公式サイト"
	noImageMessage = "No image available"
)

var translationLabels = map[string]string{
	"zh-Hans": "簡体字",
	"zh-Hant": "繁体字",
	"en":      "英語",
	"ja":      "日本語",
}

// translations are listed in this order, unknown languages follow alphabetically
var translationOrder = []string{"ja", "en", "zh-Hans", "zh-Hant"}

var departmentLabels = map[string]string{
	"Directing":         "監督・演出",
	"Writing":           "脚本",
	"Sound":             "音響",
	"Camera":            "撮影",
	"Art":               "美術",
	"Production":        "制作",
	"Visual Effects":    "視覚効果",
	"Editing":           "編集",
	"Lighting":          "照明",
	"Costume & Make-Up": "衣装・メイク",
	"Creator":           "原案・原作",
	"Crew":              "スタッフ",
}

// TitleLine is a labelled alternative title
type TitleLine struct {
	Label string
	Value string
}

// LinkGroup is a labelled set of links
type LinkGroup struct {
	Type  string
	Label string
	Links []Link
}

// Episode is one row of the episode list
type Episode struct {
	Number   int
	Title    string
	Runtime  string
	AirDate  string
	Overview string
}

// CastMember is a character and its voice actor
type CastMember struct {
	Name       string
	VoiceActor string
}

// StaffMember is one staff credit
type StaffMember struct {
	Role string
	Name string
}

// StaffGroup is the staff of one department
type StaffGroup struct {
	Department string
	Members    []StaffMember
}

// Details is the view model of the details modal
type Details struct {
	Title         string
	Found         bool
	TypeLabel     string
	Broadcast     string
	Cover         string
	NoImage       string
	Score         int
	EpisodeCount  int
	SeasonLabel   string
	RuntimeLabel  string
	ContentRating string
	Genres        []string
	Titles        []TitleLine
	OfficialSite  string
	OfficialLabel string
	Groups        []LinkGroup
	// Description is plain text; renderers must escape it
	Description string
	Episodes    []Episode
	Studios     []string
	Cast        []CastMember
	Staff       []StaffGroup
}

// BuildDetails builds the details view of title. The item is looked up in items
// for its links and translations; md may be nil.
func BuildDetails(title string, items []models.AnimeItem, meta models.SiteMeta, md *models.UnifiedMetadata, opts Options) Details {
	d := Details{
		Title:         title,
		NoImage:       noImageMessage,
		OfficialLabel: officialLabel,
	}

	item, found := models.FindItem(items, title)
	d.Found = found
	if found {
		d.TypeLabel = item.Type.Label()
		d.OfficialSite = item.OfficialSite
		if t, ok := schedule.ParseBegin(item.Begin, opts.location()); ok {
			local := t.In(opts.location())
			d.Broadcast = fmt.Sprintf("%s %s", schedule.WeekdayLabels[int(local.Weekday())], local.Format("2006-01-02 15:04"))
		}
		for _, g := range sites.GroupByType(item.Sites, meta, opts.Sites) {
			links := resolveLinks(g.Sites, meta)
			if len(links) > 0 {
				d.Groups = append(d.Groups, LinkGroup{Type: g.Type, Label: g.Label, Links: links})
			}
		}
	}

	d.Titles = titleLines(item, md)

	if md == nil {
		return d
	}

	d.Cover = md.CoverURL()
	d.Score = md.Score()
	if md.Episodes != nil {
		d.EpisodeCount = *md.Episodes
	}
	if md.TotalSeasons != nil && *md.TotalSeasons > 0 {
		current := 1
		if md.CurrentSeason != nil && *md.CurrentSeason > 0 {
			current = *md.CurrentSeason
		}
		d.SeasonLabel = fmt.Sprintf("シーズン%d / 全%dシーズン", current, *md.TotalSeasons)
	}
	if md.Runtime != nil && *md.Runtime > 0 {
		d.RuntimeLabel = fmt.Sprintf("%d分", *md.Runtime)
	}
	if md.ContentRating != nil {
		d.ContentRating = *md.ContentRating
	}
	d.Genres = md.TopGenres(detailGenres)
	if md.Description != nil {
		d.Description = *md.Description
	}
	d.Studios = md.Studios

	for _, ep := range md.EpisodesList {
		e := Episode{Number: ep.Number, Title: fmt.Sprintf("Episode %d", ep.Number)}
		if ep.Title != nil && *ep.Title != "" {
			e.Title = *ep.Title
		}
		if ep.Runtime != nil && *ep.Runtime > 0 {
			e.Runtime = fmt.Sprintf("%d分", *ep.Runtime)
		}
		if ep.AirDate != nil {
			e.AirDate = *ep.AirDate
		}
		if ep.Overview != nil {
			e.Overview = *ep.Overview
		}
		d.Episodes = append(d.Episodes, e)
	}

	for i, c := range md.Characters {
		if i == detailCast {
			break
		}
		member := CastMember{Name: c.Name}
		if c.VoiceActor != nil {
			member.VoiceActor = *c.VoiceActor
		}
		d.Cast = append(d.Cast, member)
	}

	d.Staff = groupStaff(md.Staff)
	return d
}

func titleLines(item models.AnimeItem, md *models.UnifiedMetadata) []TitleLine {
	var lines []TitleLine
	var native, romaji string
	if md != nil {
		if md.Title.Native != nil {
			native = *md.Title.Native
		}
		if md.Title.Romaji != nil {
			romaji = *md.Title.Romaji
		}
	}

	if native != "" {
		lines = append(lines, TitleLine{Label: "日本語", Value: native})
	}
	if romaji != "" && romaji != native {
		lines = append(lines, TitleLine{Label: "ローマ字", Value: romaji})
	}

	for _, lang := range translationLanguages(item.TitleTranslate) {
		titles := item.TitleTranslate[lang]
		if len(titles) == 0 {
			continue
		}
		label, ok := translationLabels[lang]
		if !ok {
			label = strings.ToUpper(lang)
		}
		lines = append(lines, TitleLine{Label: label, Value: strings.Join(titles, " / ")})
	}

	if md != nil && md.Title.English != nil && *md.Title.English != "" {
		lines = append(lines, TitleLine{Label: "英語", Value: *md.Title.English})
	}
	return lines
}

func translationLanguages(tt models.TitleTranslate) []string {
	seen := make(map[string]bool, len(tt))
	var langs []string
	for _, lang := range translationOrder {
		if _, ok := tt[lang]; ok {
			langs = append(langs, lang)
			seen[lang] = true
		}
	}

	var rest []string
	for lang := range tt {
		if !seen[lang] {
			rest = append(rest, lang)
		}
	}
	sort.Strings(rest)
	return append(langs, rest...)
}

// groupStaff groups the first credits by department in order of first appearance
func groupStaff(staff []models.UniversalStaff) []StaffGroup {
	if len(staff) > detailStaff {
		staff = staff[:detailStaff]
	}

	var groups []StaffGroup
	index := make(map[string]int)
	for _, member := range staff {
		dept := "Other"
		if member.Department != nil && *member.Department != "" {
			dept = *member.Department
		}
		if label, ok := departmentLabels[dept]; ok {
			dept = label
		}

		i, ok := index[dept]
		if !ok {
			i = len(groups)
			index[dept] = i
			groups = append(groups, StaffGroup{Department: dept})
		}
		groups[i].Members = append(groups[i].Members, StaffMember{Role: member.Role, Name: member.Name})
	}
	return groups
}
