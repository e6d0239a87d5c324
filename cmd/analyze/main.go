// Command analyze runs one-shot position analysis against a local engine and
// the tablebase service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chess_analysis/internal/app"
	"chess_analysis/internal/bootstrap"
	"chess_analysis/internal/domain"
)

var (
	configPath string
	reference  string
	depth      int
	verbose    bool
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "analyze:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "analyze",
		Short:         "Evaluate chess positions and review moves",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", ".env", "configuration file")
	root.PersistentFlags().StringVarP(&reference, "reference", "r", "w", "side the scores are reported for (w or b)")
	root.PersistentFlags().IntVarP(&depth, "depth", "d", 0, "search depth (0 uses ENGINE_EVAL_DEPTH)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(evalCmd(), bestMoveCmd(), candidatesCmd(), reviewCmd())
	return root
}

func evalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eval <fen>",
		Short: "Evaluate a position with the engine and the tablebase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := domain.ParseSide(reference)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				ue, err := a.Coordinator.Evaluate(ctx, args[0], ref, depth)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), ue)
			})
		},
	}
}

func bestMoveCmd() *cobra.Command {
	var budget time.Duration
	cmd := &cobra.Command{
		Use:   "bestmove <fen>",
		Short: "Ask the engine for its move",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				move, found, err := a.Coordinator.BestMove(ctx, args[0], budget)
				if err != nil {
					return err
				}
				if !found {
					fmt.Fprintln(cmd.OutOrStdout(), "(none)")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), move)
				return nil
			})
		},
	}
	cmd.Flags().DurationVarP(&budget, "budget", "t", time.Second, "search time")
	return cmd
}

func candidatesCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "candidates <fen>",
		Short: "List the engine's ranked candidate moves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := domain.ParseSide(reference)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				cands, err := a.Coordinator.Candidates(ctx, args[0], count, ref)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), cands)
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 3, "number of lines")
	return cmd
}

func reviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review <fen> <uci-move>",
		Short: "Judge a move played from a position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := domain.ParseSide(reference)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				review, err := a.Coordinator.Review(ctx, args[0], args[1], ref, depth)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), review)
			})
		},
	}
}

func withApp(cmd *cobra.Command, run func(ctx context.Context, a *app.App) error) error {
	cfg, err := bootstrap.Setup(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := zap.NewNop().Sugar()
	if verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer l.Sync()
		log = l.Sugar()
	}

	ctx := cmd.Context()
	a := app.New(ctx, cfg, log)
	defer a.Close(context.Background())

	return run(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
