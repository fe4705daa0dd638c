package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/t2c/internal/render"
)

func statusCmd() *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which groups are migrated and the latest published notes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(appOptions{archive: true})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			groups, err := a.migrator.Groups(ctx)
			if err != nil {
				return err
			}
			progress, err := a.state.Progress(ctx)
			if err != nil {
				return fmt.Errorf("load progress: %w", err)
			}
			receipts, err := a.db.RecentReceipts(ctx, recent)
			if err != nil {
				return fmt.Errorf("load receipts: %w", err)
			}
			published, err := a.db.ReceiptCount(ctx)
			if err != nil {
				return fmt.Errorf("count receipts: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "archive: %s (@%s)\n", a.archive.Root(), a.archive.UserName())
			fmt.Fprint(out, render.Status(groups, progress, receipts, renderOptions()))
			fmt.Fprintf(out, "%d notes published in total\n", published)
			return nil
		},
	}

	cmd.Flags().IntVarP(&recent, "recent", "n", 5, "number of recent notes to show")
	return cmd
}
