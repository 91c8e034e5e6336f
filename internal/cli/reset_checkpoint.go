package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vietddude/ocean-indexer/internal/control"
	"github.com/vietddude/ocean-indexer/internal/core/domain"
)

var resetCheckpointCmd = &cobra.Command{
	Use:   "reset-checkpoint [chain_id] [block_height]",
	Short: "Reset the checkpoint of a chain to a given block height",
	Long: `Reset the checkpoint of a chain to a given block height.

Documents are left untouched; use reindex-chain on a running node to rebuild
them from a block.`,
	Args: cobra.ExactArgs(2),
	Run:  runResetCheckpoint,
}

func init() {
	rootCmd.AddCommand(resetCheckpointCmd)
}

func runResetCheckpoint(cmd *cobra.Command, args []string) {
	chainID, err := domain.ParseChainID(args[0])
	if err != nil {
		fmt.Printf("Invalid chain id: %v\n", err)
		os.Exit(1)
	}
	height, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		fmt.Printf("Invalid block height: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Database.URL == "" {
		slog.Error("No database configured, nothing to reset")
		os.Exit(1)
	}

	ctx := context.Background()
	store, closeStore, err := control.OpenCheckpoints(ctx, cfg)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = closeStore()
	}()

	if _, err := store.Set(ctx, chainID, height, true); err != nil {
		slog.Error("Failed to reset checkpoint", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully reset checkpoint for %s to block %d\n", chainID.Name(), height)
}
