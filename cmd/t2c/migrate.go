package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/t2c/internal/migrate"
	"github.com/Zuo-Peng/t2c/internal/tui"
)

func migrateCmd() *cobra.Command {
	var (
		all   bool
		only  []string
		skip  []string
		plain bool
	)

	cmd := &cobra.Command{
		Use:   "migrate [group]",
		Short: "Publish the next unfinished group, or the named one",
		Long: `Publish archive records as Crossbell notes.

Without arguments the first unfinished group of the manifest is migrated.
Progress is checkpointed after every published record, so an interrupted
or failed run resumes where it stopped.

Examples:
  t2c migrate
  t2c migrate --all
  t2c migrate data/tweets-part1.js --skip 1050118621198921728`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkMigrateFlags(all, args, only); err != nil {
				return err
			}

			interactive := !plain && isTerminal()
			a, err := openApp(appOptions{archive: true, publisher: true, logToFile: interactive})
			if err != nil {
				return err
			}
			defer a.Close()

			opts := migrate.Options{Overrides: migrate.Overrides{
				Only:    idList(only),
				Exclude: idList(skip),
			}}

			work := func(ctx context.Context, obs migrate.Observer) error {
				a.orch.SetObserver(obs)
				switch {
				case len(args) == 1:
					_, err := a.migrator.RunGroup(ctx, args[0], opts)
					return err
				case all:
					_, err := a.migrator.RunAll(ctx, opts)
					return err
				default:
					_, ok, err := a.migrator.RunNext(ctx, opts)
					if err == nil && !ok {
						a.logger.Info("nothing left to migrate")
					}
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if interactive {
				err = tui.Run(ctx, "t2c migrate", work)
			} else {
				err = work(ctx, plainObserver{w: cmd.OutOrStdout()})
			}
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(cmd.OutOrStdout(), yellow("stopped; progress is saved"))
				return nil
			}
			if err != nil || interactive {
				return err
			}
			if done, _ := a.migrator.Complete(ctx); done {
				fmt.Fprintln(cmd.OutOrStdout(), green("all groups migrated"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "keep migrating groups until the archive is done")
	cmd.Flags().StringSliceVar(&only, "only", nil, "publish only these record ids (one group only)")
	cmd.Flags().StringSliceVar(&skip, "skip", nil, "never publish these record ids")
	cmd.Flags().BoolVar(&plain, "plain", false, "plain line output even on a terminal")
	return cmd
}

// checkMigrateFlags rejects combinations that would commit groups the user
// did not mean to touch: --only deselects everything else, so applied to
// every group it would mark them all finished.
func checkMigrateFlags(all bool, args, only []string) error {
	if all && len(args) > 0 {
		return fmt.Errorf("--all and a group name are mutually exclusive")
	}
	if all && len(only) > 0 {
		return fmt.Errorf("--only selects records of a single group and cannot be used with --all")
	}
	return nil
}
