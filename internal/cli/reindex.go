package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
)

var (
	eventIndex   int
	reindexBlock int64
)

var reindexTxCmd = &cobra.Command{
	Use:   "reindex-tx [chain_id] [tx_hash]",
	Short: "Queue a transaction for reprocessing on a running node",
	Args:  cobra.ExactArgs(2),
	Run:   runReindexTx,
}

var reindexChainCmd = &cobra.Command{
	Use:   "reindex-chain [chain_id]",
	Short: "Rewind a chain on a running node and rebuild its documents",
	Args:  cobra.ExactArgs(1),
	Run:   runReindexChain,
}

func init() {
	reindexTxCmd.Flags().IntVar(&eventIndex, "event-index", -1, "only reprocess the log at this index of the receipt")
	reindexChainCmd.Flags().Int64Var(&reindexBlock, "block", -1, "block to rewind to (default: configured start block)")
	rootCmd.AddCommand(reindexTxCmd, reindexChainCmd)
}

func runReindexTx(cmd *cobra.Command, args []string) {
	chainID := mustChainID(args[0])

	body := map[string]any{"txId": args[1]}
	if eventIndex >= 0 {
		body["eventIndex"] = eventIndex
	}

	var resp struct {
		JobID string `json:"jobId"`
	}
	if err := callAdmin(context.Background(), "POST", "/api/indexer/"+chainID.String()+"/reindex-tx", body, &resp); err != nil {
		fmt.Printf("Failed to queue transaction: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Queued %s on %s, job %s\n", args[1], chainID.Name(), resp.JobID)
}

func runReindexChain(cmd *cobra.Command, args []string) {
	chainID := mustChainID(args[0])

	body := map[string]any{}
	if reindexBlock >= 0 {
		body["block"] = reindexBlock
	}
	if err := callAdmin(context.Background(), "POST", "/api/indexer/"+chainID.String()+"/reindex-chain", body, nil); err != nil {
		fmt.Printf("Failed to request chain reindex: %v\n", err)
		os.Exit(1)
	}

	target := "the configured start block"
	if reindexBlock >= 0 {
		target = "block " + strconv.FormatInt(reindexBlock, 10)
	}
	fmt.Printf("Requested reindex of %s from %s\n", chainID.Name(), target)
}

func mustChainID(s string) domain.ChainID {
	chainID, err := domain.ParseChainID(s)
	if err != nil {
		fmt.Printf("Invalid chain id: %v\n", err)
		os.Exit(1)
	}
	return chainID
}
