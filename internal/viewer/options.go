package viewer

import (
	"fmt"

	"github.com/glefebvre/housou/internal/config"
	"github.com/glefebvre/housou/internal/schedule"
	"github.com/glefebvre/housou/internal/sites"
)

// OptionsFromConfig builds the display options configured in cfg. Width is the
// configured default; callers override it per request or terminal.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Options{}, fmt.Errorf("invalid display timezone: %w", err)
	}

	siteOpts, err := sites.NewOptions(cfg.Ranking.Policy, cfg.Display.Locale)
	if err != nil {
		return Options{}, err
	}

	var breakpoints []schedule.Breakpoint
	for _, bp := range cfg.SortedBreakpoints() {
		breakpoints = append(breakpoints, schedule.Breakpoint{MinWidth: bp.MinWidth, Columns: bp.Columns})
	}

	return Options{
		Location:    loc,
		Width:       cfg.Display.DefaultWidth,
		Breakpoints: breakpoints,
		Sites:       siteOpts,
	}, nil
}
