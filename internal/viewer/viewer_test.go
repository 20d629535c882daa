package viewer

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/glefebvre/housou/internal/errors"
	"github.com/glefebvre/housou/internal/models"
	"github.com/glefebvre/housou/internal/schedule"
	"github.com/glefebvre/housou/internal/sites"
	"github.com/glefebvre/housou/internal/testutil"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

// sunday is 2023-10-01, the day the fixture items broadcast on
var sunday = time.Date(2023, 10, 1, 12, 0, 0, 0, time.UTC)

func testOptions() Options {
	return Options{
		Location: time.UTC,
		Width:    1300,
		Sites:    sites.DefaultOptions(),
		Now:      sunday,
	}
}

func sundayItems(titles ...string) []models.AnimeItem {
	out := make([]models.AnimeItem, 0, len(titles))
	for i, title := range titles {
		begin := time.Date(2023, 10, 1, 9, i, 0, 0, time.UTC).Format(time.RFC3339)
		out = append(out, testutil.NewItem(title, testutil.WithBegin(begin)))
	}
	return out
}

func basicInput(items []models.AnimeItem) PageInput {
	return PageInput{
		Config:     testutil.NewConfig(),
		Selections: models.Selections{Year: "2023", Season: "Autumn", Site: "all"},
		Items:      items,
		Tab:        -1,
		PrevTab:    -1,
		Options:    testOptions(),
	}
}

func TestBuildPage_DefaultsToToday(t *testing.T) {
	page := BuildPage(basicInput(sundayItems("A", "B")))

	assert.Equal(t, 0, page.ActiveTab)
	require.Len(t, page.Tabs, schedule.BucketCount)
	assert.Equal(t, "日", page.Tabs[0].Label)
	assert.Equal(t, 2, page.Tabs[0].Count)
	assert.True(t, page.Tabs[0].Active)
	assert.Equal(t, "他", page.Tabs[7].Label)
	assert.Equal(t, 2, page.Total)
	assert.False(t, page.Empty)
	assert.Empty(t, page.Slide)
}

func TestBuildPage_ColumnsFollowWidth(t *testing.T) {
	items := sundayItems("a", "b", "c", "d", "e", "f", "g")

	in := basicInput(items)
	page := BuildPage(in)
	require.Equal(t, 4, page.ColumnCount)
	require.Len(t, page.Columns, 4)
	assert.Equal(t, "a", page.Columns[0][0].Title)
	assert.Equal(t, "e", page.Columns[0][1].Title)
	assert.Equal(t, "d", page.Columns[3][0].Title)

	in.Options.Width = 800
	page = BuildPage(in)
	assert.Equal(t, 2, page.ColumnCount)
	assert.Len(t, page.Columns[0], 4)
	assert.Len(t, page.Columns[1], 3)
}

func TestBuildPage_EmptyDay(t *testing.T) {
	in := basicInput(sundayItems("A"))
	in.Tab = 3

	page := BuildPage(in)
	assert.Equal(t, 3, page.ActiveTab)
	assert.True(t, page.Empty)
	assert.Equal(t, EmptyDayText, page.EmptyText)
	assert.Empty(t, page.Columns)
}

func TestBuildPage_UnknownDayTab(t *testing.T) {
	in := basicInput([]models.AnimeItem{testutil.NewItem("No date", testutil.WithBegin(""))})
	in.Tab = schedule.UnknownDay

	page := BuildPage(in)
	require.Len(t, page.Columns, 4)
	assert.Equal(t, "No date", page.Columns[0][0].Title)
	assert.Empty(t, page.Columns[0][0].Broadcast)
}

func TestBuildPage_SlideDirection(t *testing.T) {
	in := basicInput(nil)

	in.PrevTab, in.Tab = 0, 1
	page := BuildPage(in)
	assert.Equal(t, 1, page.Direction)
	assert.Equal(t, "slide-next", page.Slide)

	in.PrevTab, in.Tab = 0, 7
	page = BuildPage(in)
	assert.Equal(t, -1, page.Direction)
	assert.Equal(t, "slide-prev", page.Slide)

	in.PrevTab, in.Tab = 2, 2
	page = BuildPage(in)
	assert.Equal(t, 0, page.Direction)
}

func TestBuildPage_FilterAndSearch(t *testing.T) {
	items := []models.AnimeItem{
		testutil.NewItem("Frieren", testutil.WithTranslation("zh-Hans", "葬送的芙莉莲")),
		testutil.NewItem("Netflix Only", testutil.WithSites(models.SiteRef{Site: "netflix", ID: "1"})),
	}

	in := basicInput(items)
	in.Selections.Site = "netflix"
	page := BuildPage(in)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, "Netflix Only", page.Columns[0][0].Title)

	in = basicInput(items)
	in.Query = "芙莉莲"
	page = BuildPage(in)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, "Frieren", page.Columns[0][0].Title)
	assert.Equal(t, "芙莉莲", page.Header.Query)
}

func TestBuildPage_Header(t *testing.T) {
	page := BuildPage(basicInput(nil))

	require.Len(t, page.Header.Years, 2)
	assert.True(t, page.Header.Years[0].Selected)
	assert.Equal(t, "2023", page.Header.Years[0].Value)

	var seasons []string
	for _, s := range page.Header.Seasons {
		seasons = append(seasons, s.Label)
		if s.Value == "Autumn" {
			assert.True(t, s.Selected)
		}
	}
	assert.Equal(t, []string{"全て", "冬", "春", "夏", "秋"}, seasons)

	require.NotEmpty(t, page.Header.Sites)
	assert.Equal(t, "all", page.Header.Sites[0].Value)
	assert.Equal(t, "全て", page.Header.Sites[0].Label)
	assert.True(t, page.Header.Sites[0].Selected)
	assert.Len(t, page.Header.Sites, 6)
}

func TestBuildPage_InlineError(t *testing.T) {
	in := basicInput(sundayItems("Stale"))
	in.Err = apperrors.New(apperrors.CodeExternalService, "Items fetch failed")

	page := BuildPage(in)
	assert.Equal(t, "Items fetch failed", page.Error)
	assert.Equal(t, "Stale", page.Columns[0][0].Title)
}

func TestBuildCard(t *testing.T) {
	item := testutil.NewItem("Frieren", testutil.WithSites(
		models.SiteRef{Site: "bangumi", ID: "400602"},
		models.SiteRef{Site: "netflix", ID: "81726714"},
		models.SiteRef{Site: "abema", ID: "26-100"},
		models.SiteRef{Site: "unknown-site"},
	))
	cfg := testutil.NewConfig()

	bare := BuildCard(item, "all", cfg.SiteMeta, nil, testOptions())
	assert.Equal(t, "TV", bare.TypeLabel)
	assert.Equal(t, "09:30", bare.Broadcast)
	assert.False(t, bare.HasMetadata)
	assert.Empty(t, bare.Cover)
	assert.Equal(t, "/details?title=Frieren", bare.DetailsPath)

	// only onair sites, region ranked; info sites like bangumi stay off the card
	var keys []string
	for _, l := range bare.Links {
		keys = append(keys, l.Key)
	}
	assert.Equal(t, []string{"abema", "netflix"}, keys)
	assert.Equal(t, "https://abema.tv/video/title/26-100", bare.Links[0].URL)

	rich := BuildCard(item, "netflix", cfg.SiteMeta, testutil.NewMetadata(), testOptions())
	assert.True(t, rich.HasMetadata)
	assert.Equal(t, "https://img.example.com/xl.jpg", rich.Cover)
	assert.Equal(t, 91, rich.Score)
	assert.Equal(t, 28, rich.EpisodeCount)
	assert.Equal(t, []string{"Adventure", "Drama"}, rich.Genres)
	require.Len(t, rich.Links, 1)
	assert.Equal(t, "netflix", rich.Links[0].Key)
}

func TestBuildCard_TimezoneShiftsBroadcast(t *testing.T) {
	opts := testOptions()
	opts.Location = time.FixedZone("JST", 9*60*60)

	card := BuildCard(testutil.NewItem("A"), "all", nil, nil, opts)
	assert.Equal(t, "18:30", card.Broadcast)
}

func TestBuildFooter(t *testing.T) {
	plain := BuildFooter(testutil.NewConfig(), sunday)
	assert.Equal(t, "© 2023 Housou. All rights reserved.", plain.Copyright)
	assert.Nil(t, plain.TMDB)
	assert.Empty(t, plain.TMDBNotice)
	assert.Len(t, plain.OtherSources, 2)

	credited := BuildFooter(testutil.NewConfig(testutil.WithAttribution()), sunday)
	require.NotNil(t, credited.TMDB)
	assert.Equal(t, TMDBNotice, credited.TMDBNotice)
}

func TestBuildDetails(t *testing.T) {
	item := testutil.NewItem("葬送のフリーレン",
		testutil.WithTranslation("zh-Hans", "葬送的芙莉莲"),
		testutil.WithTranslation("en", "Frieren"),
		testutil.WithSites(
			models.SiteRef{Site: "tmdb", ID: "209867"},
			models.SiteRef{Site: "bangumi", ID: "400602"},
			models.SiteRef{Site: "netflix", ID: "81726714"},
			models.SiteRef{Site: "abema", ID: "26-100"},
			models.SiteRef{Site: "mystery", URL: "https://example.com/m"},
		),
	)
	item.OfficialSite = "https://frieren-anime.jp/"
	cfg := testutil.NewConfig()

	md := testutil.NewMetadata(func(m *models.UnifiedMetadata) {
		m.TotalSeasons = intPtr(2)
		m.Runtime = intPtr(24)
		m.ContentRating = strPtr("TV-14")
		m.Staff = []models.UniversalStaff{
			{Name: "Keiichiro Saito", Role: "Director", Department: strPtr("Directing")},
			{Name: "Tomohiro Suzuki", Role: "Series Composition", Department: strPtr("Writing")},
			{Name: "Evan Call", Role: "Music", Department: strPtr("Sound")},
			{Name: "Someone", Role: "Episode Director", Department: strPtr("Directing")},
			{Name: "Nobody", Role: "Helper"},
		}
	})

	d := BuildDetails("葬送のフリーレン", []models.AnimeItem{item}, cfg.SiteMeta, md, testOptions())

	assert.True(t, d.Found)
	assert.Equal(t, "日 2023-10-01 09:30", d.Broadcast)
	assert.Equal(t, "シーズン1 / 全2シーズン", d.SeasonLabel)
	assert.Equal(t, "24分", d.RuntimeLabel)
	assert.Equal(t, "TV-14", d.ContentRating)
	assert.Equal(t, []string{"Adventure", "Drama", "Fantasy"}, d.Genres)
	assert.Equal(t, "https://frieren-anime.jp/", d.OfficialSite)

	var groups []string
	for _, g := range d.Groups {
		groups = append(groups, g.Label)
	}
	assert.Equal(t, []string{"配信", "情報", "リソース", "その他"}, groups)
	assert.Equal(t, "abema", d.Groups[0].Links[0].Key)
	assert.Equal(t, "netflix", d.Groups[0].Links[1].Key)

	var labels []string
	for _, line := range d.Titles {
		labels = append(labels, line.Label)
	}
	assert.Equal(t, []string{"日本語", "ローマ字", "英語", "簡体字", "英語"}, labels)

	require.Len(t, d.Staff, 4)
	assert.Equal(t, "監督・演出", d.Staff[0].Department)
	assert.Len(t, d.Staff[0].Members, 2)
	assert.Equal(t, "脚本", d.Staff[1].Department)
	assert.Equal(t, "Other", d.Staff[3].Department)

	require.Len(t, d.Cast, 1)
	assert.Equal(t, "Atsumi Tanezaki", d.Cast[0].VoiceActor)
	require.Len(t, d.Episodes, 1)
	assert.Equal(t, "The Journey's End", d.Episodes[0].Title)
}

func TestBuildDetails_WithoutMetadataOrItem(t *testing.T) {
	d := BuildDetails("Missing", nil, nil, nil, testOptions())
	assert.False(t, d.Found)
	assert.Empty(t, d.Cover)
	assert.Empty(t, d.Groups)
	assert.Equal(t, noImageMessage, d.NoImage)
}

func TestBuildDetails_EpisodeFallbackTitle(t *testing.T) {
	md := testutil.NewMetadata(func(m *models.UnifiedMetadata) {
		m.EpisodesList = []models.UniversalEpisode{{Number: 3, Runtime: intPtr(25)}}
	})
	d := BuildDetails("x", nil, nil, md, testOptions())
	require.Len(t, d.Episodes, 1)
	assert.Equal(t, "Episode 3", d.Episodes[0].Title)
	assert.Equal(t, "25分", d.Episodes[0].Runtime)
}

func render(t *testing.T, name string, data interface{}) *goquery.Document {
	t.Helper()
	tmpl, err := Templates()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tmpl.ExecuteTemplate(&buf, name, data))

	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)
	return doc
}

func TestPageTemplate(t *testing.T) {
	in := basicInput(sundayItems("A", "B"))
	in.Config = testutil.NewConfig(testutil.WithAttribution())
	in.Metadata = func(title string) *models.UnifiedMetadata {
		if title == "A" {
			return testutil.NewMetadata()
		}
		return nil
	}
	doc := render(t, PageTemplate, BuildPage(in))

	assert.Equal(t, 8, doc.Find("nav.tabs a.tab").Length())
	assert.Equal(t, "日", doc.Find("a.tab.active").Text())
	href, _ := doc.Find("a.tab").Eq(1).Attr("href")
	assert.Contains(t, href, "tab=1")
	assert.Contains(t, href, "prev=0")

	assert.Equal(t, 2, doc.Find("article.card").Length())
	first := doc.Find(`article.card[data-title="A"]`)
	assert.Equal(t, "⭐ 91", first.Find(".score").Text())
	assert.Equal(t, "28話", first.Find(".episodes").Text())
	assert.Equal(t, 2, first.Find(".genre").Length())

	second := doc.Find(`article.card[data-title="B"]`)
	assert.Equal(t, "?", second.Find(".placeholder").Text())
	assert.Equal(t, 0, second.Find(".score").Length())

	selected, _ := doc.Find(`select[name="season"] option[selected]`).Attr("value")
	assert.Equal(t, "Autumn", selected)
	assert.Contains(t, doc.Find(".tmdb-notice").Text(), "not endorsed")
}

func TestPageTemplate_EmptyAndError(t *testing.T) {
	in := basicInput(nil)
	in.Err = errors.New("boom")
	doc := render(t, PageTemplate, BuildPage(in))

	assert.Equal(t, EmptyDayText, doc.Find("p.empty").Text())
	assert.Equal(t, "boom", doc.Find(".error").Text())
	assert.Equal(t, 0, doc.Find(".tmdb-notice").Length())
}

func TestDetailsTemplate_DescriptionIsEscaped(t *testing.T) {
	md := testutil.NewMetadata(func(m *models.UnifiedMetadata) {
		m.Description = strPtr(`<script>alert("xss")</script>`)
	})
	details := BuildDetails("Test Anime", nil, nil, md, testOptions())
	doc := render(t, DetailsTemplate, DetailsPage{Details: details, Back: "/", Footer: BuildFooter(nil, sunday)})

	text := doc.Find(".description .text")
	require.Equal(t, 1, text.Length())
	assert.Equal(t, 0, text.Find("script").Length())
	assert.Contains(t, text.Text(), `<script>alert("xss")</script>`)
	assert.Equal(t, "Test Anime", doc.Find("h1").Text())
}

func TestErrorTemplate(t *testing.T) {
	doc := render(t, ErrorTemplate, NewErrorPage("fetch failed", nil, testOptions()))
	assert.Equal(t, "fetch failed", doc.Find(".error p").Text())
}

func TestFit(t *testing.T) {
	assert.Equal(t, "abc  ", fit("abc", 5))
	assert.Equal(t, 6, displayWidth("日本語"))
	assert.Equal(t, "日本…", fit("日本語です", 5))
	assert.Equal(t, 5, displayWidth(fit("日本語です", 5)))
	assert.Equal(t, "", fit("x", 0))
}

func TestWriteText(t *testing.T) {
	in := basicInput(sundayItems("Frieren", "薬屋のひとりごと", "Spy"))
	in.Options.Width = 800
	page := BuildPage(in)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, page, 60))
	out := buf.String()

	assert.Contains(t, out, "2023 秋  [全て]")
	assert.Contains(t, out, "[日 3]")
	assert.Contains(t, out, "Frieren")
	assert.Contains(t, out, "薬屋のひとりごと")
	assert.Contains(t, out, "ABEMA")
	assert.Contains(t, out, "© 2023 Housou")

	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, displayWidth(line), 60, line)
	}
}

func TestWriteText_Empty(t *testing.T) {
	in := basicInput(nil)
	in.Err = apperrors.New(apperrors.CodeServiceTimeout, "request timed out")

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, BuildPage(in), 0))
	assert.Contains(t, buf.String(), EmptyDayText)
	assert.Contains(t, buf.String(), "! timed out")
}

func TestWriteDetailsText(t *testing.T) {
	item := testutil.NewItem("Frieren")
	d := BuildDetails("Frieren", []models.AnimeItem{item}, testutil.NewConfig().SiteMeta, testutil.NewMetadata(), testOptions())

	var buf bytes.Buffer
	require.NoError(t, WriteDetailsText(&buf, d))
	out := buf.String()

	assert.Contains(t, out, "Frieren\n=======")
	assert.Contains(t, out, "91%")
	assert.Contains(t, out, "28話")
	assert.Contains(t, out, "https://abema.tv/video/title/26-100")
	assert.Contains(t, out, "あらすじ\nAn elf mage outlives her party.")
	assert.Contains(t, out, "Atsumi Tanezaki")
}
