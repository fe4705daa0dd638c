package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/t2c/internal/archive"
	"github.com/Zuo-Peng/t2c/internal/migrate"
	"github.com/Zuo-Peng/t2c/internal/render"
	"github.com/Zuo-Peng/t2c/internal/tui"
)

func previewCmd() *cobra.Command {
	var (
		only  []string
		skip  []string
		plain bool
	)

	cmd := &cobra.Command{
		Use:   "preview <group>",
		Short: "Show how a group's records would be migrated, without publishing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(appOptions{archive: true})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			opts := migrate.Options{Overrides: migrate.Overrides{
				Only:    idList(only),
				Exclude: idList(skip),
			}}
			records, err := a.migrator.Preview(ctx, args[0], opts)
			if err != nil {
				return err
			}
			groups, err := a.migrator.Groups(ctx)
			if err != nil {
				return err
			}
			ref, _ := migrate.FindGroup(groups, args[0])

			raw := make([]migrate.Record, len(records))
			for i, c := range records {
				raw[i] = c.Record
			}
			if missing := archive.MissingMedia(raw); missing > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %d media files are missing from the archive\n", yellow("warning:"), missing)
			}

			if !plain && isTerminal() {
				return tui.RunPager("t2c preview "+ref.ID, func(width int) string {
					return render.Records(ref, records, render.Options{Width: width, Color: true})
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), render.Records(ref, records, renderOptions()))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&only, "only", nil, "show only these record ids as selected")
	cmd.Flags().StringSliceVar(&skip, "skip", nil, "show these record ids as skipped")
	cmd.Flags().BoolVar(&plain, "plain", false, "print instead of opening the pager")
	return cmd
}
