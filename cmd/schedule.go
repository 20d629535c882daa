package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/glefebvre/housou/internal/metadata"
	"github.com/glefebvre/housou/internal/models"
	"github.com/glefebvre/housou/internal/schedule"
	"github.com/glefebvre/housou/internal/selection"
	"github.com/glefebvre/housou/internal/termsize"
	"github.com/glefebvre/housou/internal/viewer"
)

// viewFlags are the selection and display flags shared by schedule and details
type viewFlags struct {
	year   string
	season string
	site   string
	tz     string
}

func (f *viewFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.year, "year", "", "select a year from the configuration")
	cmd.Flags().StringVar(&f.season, "season", "", "select a season (all, winter, spring, summer, autumn)")
	cmd.Flags().StringVar(&f.site, "site", "", "filter by site key, or all")
	cmd.Flags().StringVar(&f.tz, "tz", "", "timezone to display broadcasts in (defaults to display.timezone)")
}

func (f *viewFlags) change() selection.Change {
	return selection.Change{Year: f.year, Season: f.season, Site: f.site}
}

// options builds the display options for the terminal, cols cells wide
func (f *viewFlags) options(a *app, cols int) (viewer.Options, error) {
	opts, err := viewer.OptionsFromConfig(a.cfg)
	if err != nil {
		return opts, err
	}
	if f.tz != "" {
		loc, err := time.LoadLocation(f.tz)
		if err != nil {
			return opts, fmt.Errorf("unknown timezone %q: %w", f.tz, err)
		}
		opts.Location = loc
	}
	opts.Now = time.Now()
	opts.Width = termsize.PixelWidth(cols, a.cfg.Display.CellWidthPx)
	return opts, nil
}

func newScheduleCmd() *cobra.Command {
	var (
		flags  viewFlags
		search string
		day    string
		width  int
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print one day of the broadcast schedule",
		Long: `Print the broadcasts of one weekday as a grid sized to the terminal.
Year, season and site changes are remembered for the next run.`,
		Example: `  housou schedule
  housou schedule --year 2024 --season spring --day 火
  housou schedule --site netflix --search frieren`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			tab := -1
			if day != "" {
				d, ok := schedule.ParseDay(day)
				if !ok {
					return fmt.Errorf("unknown day %q", day)
				}
				tab = d
			}

			a, err := openApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			cols := width
			if cols <= 0 {
				cols = termsize.Columns(os.Stdout)
			}
			opts, err := flags.options(a, cols)
			if err != nil {
				return err
			}

			data, err := a.load(ctx, flags.change())
			if err != nil {
				return err
			}

			in := viewer.PageInput{
				Config:     data.cfg,
				Selections: data.sel,
				Items:      data.items,
				Err:        data.itemsErr,
				Query:      strings.TrimSpace(search),
				Tab:        tab,
				PrevTab:    -1,
				Options:    opts,
			}
			in.Metadata = a.prefetch(ctx, viewer.LayoutFor(in).Columns)

			return viewer.WriteText(cmd.OutOrStdout(), viewer.BuildPage(in), cols)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&search, "search", "s", "", "only show titles containing this text")
	cmd.Flags().StringVarP(&day, "day", "d", "", "weekday to show: 0-6 from Sunday, 7 for unknown, 日..土 or sun..sat")
	cmd.Flags().IntVarP(&width, "width", "w", 0, "terminal width in columns (detected when omitted)")
	return cmd
}

// prefetch resolves the metadata of every printed card and returns a lookup over it
func (a *app) prefetch(ctx context.Context, columns [][]models.AnimeItem) viewer.MetadataLookup {
	rows := 0
	for _, col := range columns {
		rows = max(rows, len(col))
	}

	p := metadata.NewPrefetcher(a.client)
	defer p.Close()

	pctx, cancel := context.WithTimeout(ctx, a.cfg.APITimeout())
	defer cancel()
	if err := p.Prefetch(pctx, metadata.Window(columns, rows), a.cfg.Display.PrefetchConcurrency); err != nil {
		a.log.DebugContext(ctx, "Metadata prefetch cut short")
	}

	return func(title string) *models.UnifiedMetadata {
		md, _ := p.Get(title)
		return md
	}
}
