package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/apetrovskiy/neon-evm/harness/config"
	"github.com/apetrovskiy/neon-evm/harness/constant"
	"github.com/apetrovskiy/neon-evm/harness/db"
	"github.com/apetrovskiy/neon-evm/harness/pipeline"
	"github.com/apetrovskiy/neon-evm/harness/state"
)

// Set at build time with -ldflags "-X main.Version=... -X main.Commit=...".
var (
	Version = "dev"
	Commit  = "unknown"
)

func InitRootCmd(rootCmd *cobra.Command, v *viper.Viper) {
	rootCmd.AddCommand(initConfigCmd(v))
	rootCmd.AddCommand(deployCmd(v))
	rootCmd.AddCommand(createAccountsCmd(v))
	rootCmd.AddCommand(mintCmd(v))
	rootCmd.AddCommand(createTransactionsCmd(v))
	rootCmd.AddCommand(sendTransactionsCmd(v))
	rootCmd.AddCommand(probeBlockhashCmd(v))
	rootCmd.AddCommand(runsCmd(v))
	rootCmd.AddCommand(pruneRunsCmd(v))
	rootCmd.AddCommand(versionCmd())
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// runPhase opens a session, runs fn and closes the session.
func runPhase(cmd *cobra.Command, v *viper.Viper, bootstrap bool, fn func(ctx context.Context, s *session) error) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	s, err := openSession(ctx, cmd, v, bootstrap)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			s.env.Logger.Warn().Err(err).Msg("failed to close session")
		}
	}()
	return fn(ctx, s)
}

func initConfigCmd(v *viper.Viper) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write the default config to <home>/config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.NodeHome, constant.ConfigSubdir, constant.ConfigFileName)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
			}
			if err := config.Save(cfg, cfg.NodeHome); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func deployCmd(v *viper.Viper) *cobra.Command {
	var opts pipeline.DeployOptions
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy ERC20 contracts through the factory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("salt-base") {
				opts.SaltBase = uint64(time.Now().Unix())
			}
			return runPhase(cmd, v, true, func(ctx context.Context, s *session) error {
				_, err := pipeline.Deploy(ctx, s.env, opts)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&opts.Count, "count", 1, "number of contracts")
	cmd.Flags().Uint64Var(&opts.SaltBase, "salt-base", 0, "first CREATE2 salt (default: current unix time)")
	return cmd
}

func createAccountsCmd(v *viper.Viper) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "create-accounts",
		Short: "Create Ethereum accounts and mint every contract's tokens to them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPhase(cmd, v, true, func(ctx context.Context, s *session) error {
				_, _, err := pipeline.CreateAccounts(ctx, s.env, count)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", 2, "number of accounts")
	return cmd
}

func mintCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "mint",
		Short: "Mint tokens of every stored contract to every stored account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPhase(cmd, v, true, func(ctx context.Context, s *session) error {
				_, err := pipeline.Mint(ctx, s.env)
				return err
			})
		},
	}
}

func createTransactionsCmd(v *viper.Viper) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "create-transactions",
		Short: "Pre-sign ERC20 transfers between stored accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			// signing is offline; no ledger connection is needed
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			env := &pipeline.Env{
				Config: cfg,
				State:  state.NewStore(cfg.NodeHome),
				Out:    cmd.OutOrStdout(),
				Logger: newLogger(cfg),
			}
			_, err = pipeline.CreateTransactions(ctx, env, count)
			return err
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "number of transactions")
	return cmd
}

func sendTransactionsCmd(v *viper.Viper) *cobra.Command {
	var (
		count     int
		keepGoing bool
	)
	cmd := &cobra.Command{
		Use:   "send-transactions",
		Short: "Submit stored transfers, then confirm and validate each",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPhase(cmd, v, true, func(ctx context.Context, s *session) error {
				_, err := pipeline.SendTransactions(ctx, s.env, pipeline.TransferOptions{Count: count, KeepGoing: keepGoing})
				return err
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "number of transactions to send (0 sends all)")
	cmd.Flags().BoolVar(&keepGoing, "keep-going", false, "confirm every transaction and report all validation failures at the end")
	return cmd
}

func probeBlockhashCmd(v *viper.Viper) *cobra.Command {
	var (
		source string
		slot   uint64
		nonce  uint64
	)
	cmd := &cobra.Command{
		Use:   "probe-blockhash",
		Short: "Ask the block hash test contract what a sysvar reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := pipeline.ProbeOptions{Source: source, Nonce: nonce}
			if cmd.Flags().Changed("slot") {
				opts.Slot = &slot
			}
			return runPhase(cmd, v, true, func(ctx context.Context, s *session) error {
				_, err := pipeline.ProbeBlockhash(ctx, s.env, s.caller, opts)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "recent_blockhashes or slot_hashes (default from config)")
	cmd.Flags().Uint64Var(&slot, "slot", 0, "call getValues(slot) instead of getCurrentValues()")
	cmd.Flags().Uint64Var(&nonce, "nonce", 0, "caller transaction nonce")
	return cmd
}

func runsCmd(v *viper.Viper) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent phase runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			database, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			runs, err := database.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tPHASE\tSTATUS\tTOTAL\tERRORS\tCONFIRMED\tSTARTED")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					r.RunID, r.Phase, r.Status, r.Total, r.Errors, r.Confirmed, r.CreatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to list")
	return cmd
}

func pruneRunsCmd(v *viper.Viper) *cobra.Command {
	var retention time.Duration
	cmd := &cobra.Command{
		Use:   "prune-runs",
		Short: "Delete finished runs older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			database, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			deleted, err := db.NewRunPruner(database, retention, newLogger(cfg)).Prune(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d runs\n", deleted)
			return nil
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", 7*24*time.Hour, "keep runs newer than this")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print neonbench version info",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:       %s\n", "neonbench")
			fmt.Fprintf(out, "Version:    %s\n", Version)
			fmt.Fprintf(out, "Commit:     %s\n", Commit)
		},
	}
}
