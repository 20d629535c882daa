package viewer

import (
	"fmt"
	"time"

	"github.com/glefebvre/housou/internal/models"
)

// TMDBNotice is the notice required next to the TMDB logo
const TMDBNotice = "This product uses the TMDb API but is not endorsed or certified by TMDb."

// SourceURL is the project's source repository
const SourceURL = "https://github.com/Asutorufa/housou"

// OtherSources are the non-TMDB data sources credited in the footer
var OtherSources = []Link{
	{Key: "bangumi-data", Title: "Bangumi Data (GitHub)", URL: "https://github.com/bangumi-data/bangumi-data"},
	{Key: "anilist", Title: "AniList API", URL: "https://anilist.co"},
}

// Footer is the page footer with the data source attribution
type Footer struct {
	Copyright    string
	SourceURL    string
	TMDB         *models.TMDBAttribution
	TMDBNotice   string
	OtherSources []Link
}

// BuildFooter builds the footer. The TMDB block is only present when the
// backend configuration carries attribution logos.
func BuildFooter(cfg *models.Config, now time.Time) Footer {
	f := Footer{
		Copyright:    fmt.Sprintf("© %d Housou. All rights reserved.", now.Year()),
		SourceURL:    SourceURL,
		OtherSources: OtherSources,
	}
	if cfg != nil && cfg.Attribution != nil && cfg.Attribution.TMDB.LogoLong != "" {
		tmdb := cfg.Attribution.TMDB
		f.TMDB = &tmdb
		f.TMDBNotice = TMDBNotice
	}
	return f
}
