package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/ocean-indexer/internal/indexing/indexer"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current status of all indexed chains",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	var resp struct {
		Chains []indexer.Status `json:"chains"`
	}
	if err := callAdmin(context.Background(), "GET", "/api/indexer/status", nil, &resp); err != nil {
		fmt.Printf("Failed to read status: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CHAIN\tSTATE\tBLOCK\tHEIGHT\tLAG\tCHUNK\tQUEUE\tERROR")

	for _, s := range resp.Chains {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			s.Network, s.State, s.LastIndexedBlock, s.NetworkHeight, s.Lag, s.ChunkSize, s.QueueLength, s.LastError)
	}
	_ = w.Flush()
}
