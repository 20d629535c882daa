package sites

import (
	"fmt"
	"strings"

	"github.com/glefebvre/housou/internal/models"
)

// Policy selects how a site reference is ranked for display
type Policy string

const (
	// PolicyRegion ranks by the site's region list (canonical)
	PolicyRegion Policy = "region"
	// PolicyKeyword ranks by matching the site key against curated name fragments
	PolicyKeyword Policy = "keyword"
)

// ParsePolicy converts a configuration value into a Policy
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyRegion, "":
		return PolicyRegion, nil
	case PolicyKeyword:
		return PolicyKeyword, nil
	default:
		return "", fmt.Errorf("unknown ranking policy %q", s)
	}
}

// Ranker returns the sort rank of a site reference. Lower sorts first.
type Ranker func(ref models.SiteRef, meta models.SiteMeta) int

// Ranker returns the ranking function of the policy
func (p Policy) Ranker() Ranker {
	if p == PolicyKeyword {
		return func(ref models.SiteRef, _ models.SiteMeta) int {
			return KeywordRank(ref.Site)
		}
	}
	return RegionRank
}

var greaterChina = map[string]bool{"CN": true, "TW": true, "HK": true, "MO": true}

// EffectiveRegions returns the reference's own regions, else the regions of its SiteMeta entry
func EffectiveRegions(ref models.SiteRef, meta models.SiteMeta) []string {
	if len(ref.Regions) > 0 {
		return ref.Regions
	}
	if m, ok := meta.Lookup(ref.Site); ok {
		return m.Regions
	}
	return nil
}

// RegionRank ranks Japanese sites first, then unknown or other regions, then Greater China
func RegionRank(ref models.SiteRef, meta models.SiteMeta) int {
	regions := EffectiveRegions(ref, meta)
	if len(regions) == 0 {
		return 2
	}

	chinese := false
	for _, r := range regions {
		r = strings.ToUpper(r)
		if r == "JP" {
			return 1
		}
		if greaterChina[r] {
			chinese = true
		}
	}
	if chinese {
		return 3
	}
	return 2
}

var (
	japaneseSites = []string{
		"abema", "unext", "dazn", "nicovideo", "danime", "bandaichannel", "dmm",
		"fod", "paravi", "telasa", "wowow", "videomarket", "musicjp",
	}
	internationalSites = []string{
		"netflix", "amazon", "primevideo", "prime", "disney", "hulu", "crunchyroll",
		"funimation", "apple", "google", "itunes",
	}
	chineseSites = []string{
		"bilibili", "bilibili_hk_mo_tw", "bilibili_hk_mo", "bilibili_tw", "iqiyi", "qq",
		"youku", "letv", "pptv", "mgtv", "acfun", "sohu", "tudou",
	}
)

// KeywordRank classifies a site key by substring: 1 Japanese, 2 international, 4 Chinese, 3 anything else.
// Used when no region data is available.
func KeywordRank(site string) int {
	s := strings.ToLower(site)
	switch {
	case containsAny(s, japaneseSites):
		return 1
	case containsAny(s, internationalSites):
		return 2
	case containsAny(s, chineseSites):
		return 4
	default:
		return 3
	}
}

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}
