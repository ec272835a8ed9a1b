package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arealhq/arealbot/internal/app"
	"github.com/arealhq/arealbot/internal/config"
	"github.com/arealhq/arealbot/internal/rbac"
)

var (
	askThread string
	askRole   string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a one-shot question from the terminal",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askThread, "thread", "terminal", "conversation thread ID")
	askCmd.Flags().StringVar(&askRole, "role", "public", "caller role (public, client, employee, sales, hr, management)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	question := strings.Join(args, " ")
	role := rbac.Normalize(askRole)

	result, err := a.Orchestrator.Turn(ctx, askThread, role, question)
	if err != nil {
		return fmt.Errorf("processing turn: %w", err)
	}

	fmt.Println(result.Reply)
	if !result.Persisted {
		a.Logger.Warn("turn was not persisted, history may be lost")
	}
	return nil
}
