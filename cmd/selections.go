package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSelectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "selections",
		Short: "Show or reset the remembered year, season and site",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the stored selections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			sel, found, err := a.store().Load(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !found {
				fmt.Fprintln(out, "No stored selections")
				return nil
			}
			fmt.Fprintf(out, "year:   %s\nseason: %s\nsite:   %s\n", sel.Year, sel.Season, sel.Site)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Forget the stored selections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store().Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Selections reset")
			return nil
		},
	})

	return cmd
}
