package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/t2c/internal/archive"
	"github.com/Zuo-Peng/t2c/internal/config"
	"github.com/Zuo-Peng/t2c/internal/crossbell"
	"github.com/Zuo-Peng/t2c/internal/migrate"
	"github.com/Zuo-Peng/t2c/internal/store"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Self-check: verify config, archive, state DB and operator credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			fmt.Println("=== Config ===")
			if cfg.Path == "" {
				fmt.Println("  File: (none, using defaults)")
			} else {
				fmt.Printf("  File: %s\n", cfg.Path)
			}
			fmt.Printf("  Indexer: %s\n", cfg.Crossbell.IndexerURL)
			fmt.Printf("  IPFS relay: %s\n", cfg.Crossbell.IPFSURL)
			if cfg.Crossbell.Token == "" {
				fmt.Printf("  Token: %s\n", red("NOT SET (set crossbell.token or T2C_TOKEN)"))
			} else {
				fmt.Printf("  Token: %s\n", green("set"))
			}

			fmt.Println("\n=== Archive ===")
			checkDir("Root", cfg.ArchiveRoot)
			if a, err := archive.Open(cfg.ArchiveRoot, nil); err != nil {
				fmt.Printf("  Manifest: %s\n", red(err.Error()))
			} else {
				m := a.Manifest()
				fmt.Printf("  Account: @%s (%s)\n", m.UserName, m.DisplayName)
				checkDir("Media", a.MediaDir())
				total, missing := 0, 0
				for _, f := range m.Files {
					recs, err := a.Load(ctx, migrate.GroupRef{ID: f.FileName, SourceRef: f.GlobalName})
					if err != nil {
						fmt.Printf("  %s: %s\n", f.FileName, red(err.Error()))
						continue
					}
					total += len(recs)
					missing += archive.MissingMedia(recs)
					status := green("OK")
					if len(recs) != f.Count {
						status = yellow(fmt.Sprintf("MISMATCH (manifest says %d)", f.Count))
					}
					fmt.Printf("  %s: %s records %s\n", f.FileName, humanize.Comma(int64(len(recs))), status)
				}
				fmt.Printf("  Records: %s\n", humanize.Comma(int64(total)))
				if unlisted, err := a.Unlisted(); err == nil {
					for _, f := range unlisted {
						fmt.Printf("  %s: %s\n", f.Path, yellow(fmt.Sprintf("NOT IN MANIFEST (%s, skipped)", humanize.Bytes(uint64(f.Size)))))
					}
				}
				if missing > 0 {
					fmt.Printf("  Missing media: %s\n", yellow(missing))
				}
			}

			fmt.Println("\n=== State ===")
			fmt.Printf("  Path: %s\n", cfg.DBPath)
			if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
				fmt.Println("  Status: NOT FOUND (created by the first migrate)")
				return nil
			}

			db, err := store.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			state := migrate.NewState(db)
			settings, err := state.Settings(ctx)
			if err != nil {
				fmt.Printf("  Settings: %s\n", red(err.Error()))
			} else if settings.TargetIdentity == "" {
				fmt.Printf("  Target: %s\n", yellow("NOT SET (t2c settings --target <id>)"))
			} else {
				fmt.Printf("  Target: %s\n", settings.TargetIdentity)
			}

			progress, err := state.Progress(ctx)
			if err != nil {
				fmt.Printf("  Progress: %s\n", red(err.Error()))
			} else {
				fmt.Printf("  Finished groups: %d\n", progress.FinishedGroups.Len())
				if progress.ProcessingGroup != "" {
					fmt.Printf("  Processing: %s (%d records checkpointed)\n",
						progress.ProcessingGroup, progress.FinishedRecordIDs.Len())
				}
			}
			if at, err := db.UpdatedAt(ctx, migrate.ProgressKey); err == nil && !at.IsZero() {
				fmt.Printf("  Last checkpoint: %s\n", humanize.RelTime(at, time.Now(), "ago", "from now"))
			}

			if n, err := db.ReceiptCount(ctx); err == nil {
				fmt.Printf("  Receipts: %s\n", humanize.Comma(int64(n)))
			}

			fmt.Println("\n=== Crossbell ===")
			checkOperator(ctx, cfg, settings.TargetIdentity)

			if info, err := os.Stat(cfg.DBPath); err == nil {
				fmt.Printf("\n=== DB Size: %s ===\n", humanize.Bytes(uint64(info.Size())))
			}
			return nil
		},
	}
}

func checkDir(name, path string) {
	if info, err := os.Stat(path); err != nil {
		fmt.Printf("  %s: %s (NOT FOUND)\n", name, path)
	} else if !info.IsDir() {
		fmt.Printf("  %s: %s (NOT A DIRECTORY)\n", name, path)
	} else {
		fmt.Printf("  %s: %s (OK)\n", name, path)
	}
}

// checkOperator asks the indexer whether the token may post on target and
// whether its account can pay for transactions.
func checkOperator(ctx context.Context, cfg *config.Config, target string) {
	if cfg.Crossbell.Token == "" || target == "" {
		fmt.Println("  Skipped (needs a token and a target character)")
		return
	}
	client, err := crossbell.New(crossbell.Config{
		IndexerURL: cfg.Crossbell.IndexerURL,
		IPFSURL:    cfg.Crossbell.IPFSURL,
		Token:      cfg.Crossbell.Token,
		Timeout:    cfg.Crossbell.RequestTimeout(),
	})
	if err != nil {
		fmt.Printf("  Client: %s\n", red(err.Error()))
		return
	}
	defer client.Close()

	p, err := client.Preflight(ctx, target)
	if err != nil {
		fmt.Printf("  Preflight: %s\n", red(err.Error()))
		return
	}
	fmt.Printf("  Signer: %s\n", p.Address)
	if p.IsOperator {
		fmt.Printf("  Operator of %s: %s\n", target, green("OK"))
	} else {
		fmt.Printf("  Operator of %s: %s\n", target, red("NOT AUTHORIZED (add the signer as an operator)"))
	}
	switch {
	case p.Balance == nil:
		fmt.Println("  Balance: unknown (not reported by the indexer)")
	case p.LowBalance():
		fmt.Printf("  Balance: %s\n", yellow(fmt.Sprintf("%s (claim some at %s)", crossbell.FormatCSB(p.Balance), crossbell.FaucetURL(p.Address))))
	default:
		fmt.Printf("  Balance: %s\n", green(crossbell.FormatCSB(p.Balance)))
	}
}
