package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func settingsCmd() *cobra.Command {
	var (
		replies    bool
		retweets   bool
		duplicates bool
		target     string
	)

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the migration filters and target character",
		Long: `Show or change the persisted migration settings.

Only the flags given are changed.

Examples:
  t2c settings
  t2c settings --target 42 --replies=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			s, err := a.state.Settings(ctx)
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}

			flags := cmd.Flags()
			changed := false
			if flags.Changed("replies") {
				s.IncludeReplies = replies
				changed = true
			}
			if flags.Changed("retweets") {
				s.IncludeRetweets = retweets
				changed = true
			}
			if flags.Changed("prevent-duplicates") {
				s.PreventDuplicates = duplicates
				changed = true
			}
			if flags.Changed("target") {
				s.TargetIdentity = target
				changed = true
			}
			if changed {
				if err := a.state.SetSettings(ctx, s); err != nil {
					return fmt.Errorf("save settings: %w", err)
				}
			}

			shown := s.TargetIdentity
			if shown == "" {
				shown = yellow("(not set)")
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "target character:   %s\n", shown)
			fmt.Fprintf(out, "include replies:    %t\n", s.IncludeReplies)
			fmt.Fprintf(out, "include retweets:   %t\n", s.IncludeRetweets)
			fmt.Fprintf(out, "prevent duplicates: %t\n", s.PreventDuplicates)
			return nil
		},
	}

	cmd.Flags().BoolVar(&replies, "replies", false, "publish replies")
	cmd.Flags().BoolVar(&retweets, "retweets", false, "publish retweets")
	cmd.Flags().BoolVar(&duplicates, "prevent-duplicates", true, "skip records already on the character")
	cmd.Flags().StringVar(&target, "target", "", "character id to publish to")
	return cmd
}
