package sites

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/glefebvre/housou/internal/models"
)

func keys(refs []models.SiteRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Site
	}
	return out
}

func testMeta() models.SiteMeta {
	return models.SiteMeta{
		"abema":    {Title: "ABEMA", URLTemplate: "https://abema.tv/video/title/{{id}}", Type: models.SiteTypeOnair, Regions: []string{"JP"}},
		"bangumi":  {Title: "番组计划", URLTemplate: "https://bangumi.tv/subject/{{id}}", Type: models.SiteTypeInfo},
		"bilibili": {Title: "哔哩哔哩", URLTemplate: "https://www.bilibili.com/bangumi/media/md{{id}}/", Type: models.SiteTypeOnair, Regions: []string{"CN"}},
		"netflix":  {Title: "Netflix", URLTemplate: "https://www.netflix.com/title/{{id}}", Type: models.SiteTypeOnair},
		"tmdb":     {Title: "TMDB", URLTemplate: "https://www.themoviedb.org/tv/{{id}}", Type: models.SiteTypeResource},
		"unext":    {Title: "U-NEXT", URLTemplate: "https://video.unext.jp/title/{{id}}", Type: models.SiteTypeOnair, Regions: []string{"JP"}},
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"region", PolicyRegion, false},
		{"", PolicyRegion, false},
		{"Keyword", PolicyKeyword, false},
		{"alphabetical", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestRegionRank(t *testing.T) {
	meta := testMeta()
	tests := []struct {
		name string
		ref  models.SiteRef
		want int
	}{
		{"own JP region", models.SiteRef{Site: "x", Regions: []string{"JP"}}, 1},
		{"JP among others", models.SiteRef{Site: "x", Regions: []string{"CN", "JP"}}, 1},
		{"lowercase jp", models.SiteRef{Site: "x", Regions: []string{"jp"}}, 1},
		{"falls back to meta regions", models.SiteRef{Site: "abema"}, 1},
		{"no regions anywhere", models.SiteRef{Site: "netflix"}, 2},
		{"unknown site", models.SiteRef{Site: "nowhere"}, 2},
		{"greater china", models.SiteRef{Site: "x", Regions: []string{"HK", "MO"}}, 3},
		{"meta CN", models.SiteRef{Site: "bilibili"}, 3},
		{"other explicit region", models.SiteRef{Site: "x", Regions: []string{"US"}}, 2},
		{"own regions win over meta", models.SiteRef{Site: "bilibili", Regions: []string{"JP"}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RegionRank(tt.ref, meta))
		})
	}
}

func TestRegionRank_JPNeverAfterNonJP(t *testing.T) {
	meta := testMeta()
	jp := models.SiteRef{Site: "a", Regions: []string{"JP"}}
	for _, other := range [][]string{nil, {"US"}, {"CN"}, {"TW", "US"}} {
		b := models.SiteRef{Site: "b", Regions: other}
		assert.LessOrEqual(t, RegionRank(jp, meta), RegionRank(b, meta))
	}
}

func TestKeywordRank(t *testing.T) {
	tests := map[string]int{
		"abema":         1,
		"dmm_tv":        1,
		"Netflix":       2,
		"primevideo":    2,
		"bilibili_tw":   4,
		"iqiyi":         4,
		"bangumi":       3,
		"somethingelse": 3,
	}
	for site, want := range tests {
		assert.Equal(t, want, KeywordRank(site), site)
	}
}

func TestSort_Scenario(t *testing.T) {
	refs := []models.SiteRef{
		{Site: "netflix", Regions: []string{"US"}},
		{Site: "abema", Regions: []string{"JP"}},
		{Site: "bangumi", Regions: []string{"JP"}},
	}

	got := Sort(refs, testMeta(), DefaultOptions())
	assert.Equal(t, []string{"abema", "bangumi", "netflix"}, keys(got))
}

func TestSort_BangumiLastWithinRank(t *testing.T) {
	refs := []models.SiteRef{
		{Site: "bangumi", Regions: []string{"JP"}},
		{Site: "unext", Regions: []string{"JP"}},
		{Site: "abema", Regions: []string{"JP"}},
	}

	got := Sort(refs, testMeta(), DefaultOptions())
	assert.Equal(t, []string{"abema", "unext", "bangumi"}, keys(got))
}

func TestSort_BangumiDoesNotJumpRanks(t *testing.T) {
	refs := []models.SiteRef{
		{Site: "bilibili"},
		{Site: "bangumi", Regions: []string{"JP"}},
	}

	got := Sort(refs, testMeta(), DefaultOptions())
	assert.Equal(t, []string{"bangumi", "bilibili"}, keys(got))
}

func TestSort_DoesNotMutateInput(t *testing.T) {
	refs := []models.SiteRef{
		{Site: "netflix"},
		{Site: "abema"},
	}
	_ = Sort(refs, testMeta(), DefaultOptions())
	assert.Equal(t, []string{"netflix", "abema"}, keys(refs))
}

func TestSort_StableOnEqualTitleAndKey(t *testing.T) {
	refs := []models.SiteRef{
		{Site: "netflix", ID: "first"},
		{Site: "netflix", ID: "second"},
	}

	once := Sort(refs, testMeta(), DefaultOptions())
	twice := Sort(once, testMeta(), DefaultOptions())
	assert.Equal(t, "first", twice[0].ID)
	assert.Equal(t, "second", twice[1].ID)
}

func TestSort_TitleThenKey(t *testing.T) {
	meta := models.SiteMeta{
		"zz": {Title: "Same"},
		"aa": {Title: "Same"},
		"mm": {Title: "Alpha"},
	}
	refs := []models.SiteRef{{Site: "zz"}, {Site: "aa"}, {Site: "mm"}}

	got := Sort(refs, meta, DefaultOptions())
	assert.Equal(t, []string{"mm", "aa", "zz"}, keys(got))
}

func TestSort_KeywordPolicy(t *testing.T) {
	refs := []models.SiteRef{
		{Site: "bilibili"},
		{Site: "other"},
		{Site: "netflix"},
		{Site: "abema"},
	}

	opts := Options{Policy: PolicyKeyword, Locale: language.English}
	got := Sort(refs, models.SiteMeta{}, opts)
	assert.Equal(t, []string{"abema", "netflix", "other", "bilibili"}, keys(got))
}

func TestSort_Empty(t *testing.T) {
	assert.Empty(t, Sort(nil, testMeta(), DefaultOptions()))
}

func TestResolveURL(t *testing.T) {
	meta := testMeta()
	tests := []struct {
		name string
		ref  models.SiteRef
		want string
	}{
		{"url wins", models.SiteRef{Site: "abema", ID: "1", URL: "https://example.com/x"}, "https://example.com/x"},
		{"template", models.SiteRef{Site: "abema", ID: "26-1"}, "https://abema.tv/video/title/26-1"},
		{"no meta", models.SiteRef{Site: "unknown", ID: "1"}, ""},
		{"no template", models.SiteRef{Site: "x"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveURL(tt.ref, meta))
		})
	}
}

func TestCardSites(t *testing.T) {
	item := models.AnimeItem{
		Title: "Frieren",
		Sites: []models.SiteRef{
			{Site: "bangumi", ID: "1"},
			{Site: "netflix", ID: "2"},
			{Site: "abema", ID: "3"},
			{Site: "tmdb", ID: "4"},
			{Site: "special", ID: "5", Type: models.SiteTypeOnair},
		},
	}

	t.Run("all sites keeps onair only", func(t *testing.T) {
		got := CardSites(item, models.SiteAll, testMeta(), DefaultOptions())
		assert.Equal(t, []string{"abema", "netflix", "special"}, keys(got))
	})

	t.Run("selected site", func(t *testing.T) {
		got := CardSites(item, "netflix", testMeta(), DefaultOptions())
		assert.Equal(t, []string{"netflix"}, keys(got))
	})

	t.Run("selected non-onair site", func(t *testing.T) {
		assert.Empty(t, CardSites(item, "tmdb", testMeta(), DefaultOptions()))
	})
}

func TestGroupByType(t *testing.T) {
	refs := []models.SiteRef{
		{Site: "tmdb", ID: "1"},
		{Site: "mystery", URL: "https://mystery.example"},
		{Site: "bangumi", ID: "2"},
		{Site: "abema", ID: "3"},
	}

	groups := GroupByType(refs, testMeta(), DefaultOptions())
	require.Len(t, groups, 4)
	assert.Equal(t, "onair", groups[0].Type)
	assert.Equal(t, "配信", groups[0].Label)
	assert.Equal(t, []string{"abema"}, keys(groups[0].Sites))
	assert.Equal(t, "info", groups[1].Type)
	assert.Equal(t, "resource", groups[2].Type)
	assert.Equal(t, "other", groups[3].Type)
	assert.Equal(t, []string{"mystery"}, keys(groups[3].Sites))
}

func TestSelectOptions(t *testing.T) {
	meta := models.SiteMeta{
		"netflix": {Title: "Netflix"},
		"abema":   {Title: "ABEMA"},
		"raw":     {},
	}

	opts := SelectOptions(meta, Options{Policy: PolicyRegion, Locale: language.English})
	require.Len(t, opts, 3)
	assert.Equal(t, "abema", opts[0].Key)
	assert.Equal(t, "netflix", opts[1].Key)
	assert.Equal(t, "raw", opts[2].Key)
	assert.Equal(t, "raw", opts[2].Title)
}

func TestNewOptions(t *testing.T) {
	opts, err := NewOptions("keyword", "en")
	require.NoError(t, err)
	assert.Equal(t, PolicyKeyword, opts.Policy)
	assert.Equal(t, "en", opts.Locale.String())

	_, err = NewOptions("region", "!!")
	assert.Error(t, err)
}
