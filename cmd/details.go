package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/glefebvre/housou/internal/errors"
	"github.com/glefebvre/housou/internal/metadata"
	"github.com/glefebvre/housou/internal/models"
	"github.com/glefebvre/housou/internal/schedule"
	"github.com/glefebvre/housou/internal/termsize"
	"github.com/glefebvre/housou/internal/viewer"
)

func newDetailsCmd() *cobra.Command {
	var flags viewFlags

	cmd := &cobra.Command{
		Use:     "details <title>",
		Short:   "Print the details of one broadcast",
		Example: `  housou details "葬送のフリーレン" --year 2023 --season autumn`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			title := strings.TrimSpace(args[0])
			if title == "" {
				return apperrors.ValidationError("title is required")
			}

			a, err := openApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			opts, err := flags.options(a, termsize.DefaultColumns)
			if err != nil {
				return err
			}

			data, err := a.load(ctx, flags.change())
			if err != nil {
				return err
			}
			if data.itemsErr != nil {
				return data.itemsErr
			}

			item, found := models.FindItem(data.items, title)
			if !found {
				notFound := apperrors.NotFoundError("broadcast", title).WithContext("year", data.sel.Year)
				if suggestion, ok := schedule.ClosestTitle(data.items, title); ok {
					return fmt.Errorf("%w; did you mean %q?", notFound, suggestion)
				}
				return notFound
			}

			p := metadata.NewPrefetcher(a.client)
			defer p.Close()
			fctx, cancel := context.WithTimeout(ctx, a.cfg.APITimeout())
			md := p.Fetch(fctx, item)
			cancel()

			details := viewer.BuildDetails(title, data.items, data.cfg.SiteMeta, md, opts)
			return viewer.WriteDetailsText(cmd.OutOrStdout(), details)
		},
	}

	flags.register(cmd)
	return cmd
}
