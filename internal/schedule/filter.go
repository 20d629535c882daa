package schedule

import (
	"strings"

	"github.com/hbollon/go-edlib"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/glefebvre/housou/internal/models"
)

// minSuggestionScore is the Jaro-Winkler similarity below which no title is suggested
const minSuggestionScore = 0.7

// normalize folds width variants and case so that "ＳＰＹ" matches "spy"
func normalize(s string) string {
	out, _, err := transform.String(norm.NFKC, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Filter keeps items listing site (unless it is "all" or empty) whose title or any
// translated title contains query, case-insensitively.
func Filter(items []models.AnimeItem, site, query string) []models.AnimeItem {
	q := normalize(strings.TrimSpace(query))
	filterSite := site != "" && site != models.SiteAll

	out := make([]models.AnimeItem, 0, len(items))
	for _, item := range items {
		if filterSite && !item.HasSite(site) {
			continue
		}
		if q != "" && !matchesQuery(item, q) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func matchesQuery(item models.AnimeItem, q string) bool {
	if strings.Contains(normalize(item.Title), q) {
		return true
	}
	for _, titles := range item.TitleTranslate {
		for _, t := range titles {
			if strings.Contains(normalize(t), q) {
				return true
			}
		}
	}
	return false
}

// ClosestTitle suggests the item title most similar to title. It reports false
// when nothing is similar enough.
func ClosestTitle(items []models.AnimeItem, title string) (string, bool) {
	target := normalize(title)
	best, bestScore := "", float32(0)

	for _, item := range items {
		score := edlib.JaroWinklerSimilarity(target, normalize(item.Title))
		for _, titles := range item.TitleTranslate {
			for _, t := range titles {
				if s := edlib.JaroWinklerSimilarity(target, normalize(t)); s > score {
					score = s
				}
			}
		}
		if score > bestScore {
			best, bestScore = item.Title, score
		}
	}

	if bestScore < minSuggestionScore {
		return "", false
	}
	return best, true
}
