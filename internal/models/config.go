package models

// TMDBAttribution holds the logo URLs required by the TMDB terms of use
type TMDBAttribution struct {
	LogoSquare  string `json:"logo_square"`
	LogoLong    string `json:"logo_long"`
	LogoAltLong string `json:"logo_alt_long"`
}

// Attribution is the optional attribution block of the backend configuration
type Attribution struct {
	TMDB TMDBAttribution `json:"tmdb"`
}

// Config is the backend configuration fetched once per session
type Config struct {
	Years       []int        `json:"years"`
	SiteMeta    SiteMeta     `json:"site_meta"`
	Attribution *Attribution `json:"attribution,omitempty"`
}

// HasYear reports whether year is one of the selectable years
func (c *Config) HasYear(year int) bool {
	for _, y := range c.Years {
		if y == year {
			return true
		}
	}
	return false
}

// LatestYear returns the most recent selectable year
func (c *Config) LatestYear() (int, bool) {
	if len(c.Years) == 0 {
		return 0, false
	}
	latest := c.Years[0]
	for _, y := range c.Years[1:] {
		if y > latest {
			latest = y
		}
	}
	return latest, true
}
