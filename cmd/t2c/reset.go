package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func resetCmd() *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget migration progress, for one group or everything",
		Long: `Forget migration progress. Settings and the receipt journal are kept.

Records already on the character are skipped on the next run as long as
duplicate prevention is on.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(appOptions{archive: group != ""})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if group != "" {
				if err := a.migrator.ResetGroup(ctx, group); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s progress for %s cleared\n", green("ok"), group)
				return nil
			}

			if err := a.state.ResetProgress(ctx); err != nil {
				return fmt.Errorf("reset progress: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s all progress cleared\n", green("ok"))
			return nil
		},
	}

	cmd.Flags().StringVar(&group, "group", "", "only reset this group")
	return cmd
}
