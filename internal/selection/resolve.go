package selection

import (
	"strconv"
	"time"

	apperrors "github.com/glefebvre/housou/internal/errors"
	"github.com/glefebvre/housou/internal/models"
)

// Defaults is the selection used before anything has been stored
var Defaults = models.Selections{
	Year:   "",
	Season: string(models.SeasonAll),
	Site:   models.SiteAll,
}

// CurrentSeason returns the broadcast season of now: Winter for January to March,
// Spring for April to June, Summer for July to September, Autumn otherwise.
func CurrentSeason(now time.Time) models.Season {
	seasons := [...]models.Season{models.SeasonWinter, models.SeasonSpring, models.SeasonSummer, models.SeasonAutumn}
	return seasons[(int(now.Month())-1)/3]
}

// DefaultYear returns the current year if selectable, else the latest selectable year, else ""
func DefaultYear(cfg *models.Config, now time.Time) string {
	if cfg == nil {
		return ""
	}
	if cfg.HasYear(now.Year()) {
		return strconv.Itoa(now.Year())
	}
	if latest, ok := cfg.LatestYear(); ok {
		return strconv.Itoa(latest)
	}
	return ""
}

// YearValid reports whether year is one of the configured years
func YearValid(year string, cfg *models.Config) bool {
	if year == "" || cfg == nil {
		return false
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return false
	}
	return cfg.HasYear(y)
}

// Resolve validates stored selections against a freshly fetched configuration.
// An invalid or missing year triggers defaulting of both year and season.
// The site is kept as stored and only defaults to "all" when empty.
func Resolve(stored models.Selections, cfg *models.Config, now time.Time) models.Selections {
	out := stored

	if !YearValid(out.Year, cfg) {
		out.Year = DefaultYear(cfg, now)
		out.Season = string(CurrentSeason(now))
	} else if !models.Season(out.Season).Valid() {
		out.Season = string(models.SeasonAll)
	}

	if out.Site == "" {
		out.Site = models.SiteAll
	}
	return out
}

// Change is a requested update. Empty fields are left untouched.
type Change struct {
	Year   string `json:"year"`
	Season string `json:"season"`
	Site   string `json:"site"`
}

// IsEmpty reports whether the change updates nothing
func (c Change) IsEmpty() bool {
	return c.Year == "" && c.Season == "" && c.Site == ""
}

// Apply returns current with the change applied. Years outside the configuration
// and unknown seasons are rejected; any site key is accepted.
func Apply(current models.Selections, change Change, cfg *models.Config) (models.Selections, error) {
	out := current

	if change.Year != "" {
		if !YearValid(change.Year, cfg) {
			return current, apperrors.New(apperrors.CodeInvalidInput, "year is not available").
				WithContext("year", change.Year)
		}
		out.Year = change.Year
	}
	if change.Season != "" {
		season, ok := models.ParseSeason(change.Season)
		if !ok {
			return current, apperrors.New(apperrors.CodeInvalidInput, "unknown season").
				WithContext("season", change.Season)
		}
		out.Season = string(season)
	}
	if change.Site != "" {
		out.Site = change.Site
	}
	return out, nil
}
