package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/eventsage/internal/app"
	"github.com/dshills/eventsage/pkg/types"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index statistics and providers",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	// a mismatched index must still be inspectable
	svc, err := openService(cmd, app.WithoutDimensionCheck())
	if err != nil {
		return err
	}
	defer closeService(cmd, svc)

	status, err := svc.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}
	if statusJSON {
		return printJSON(cmd, status)
	}
	printStatus(cmd, status)
	return nil
}

func printStatus(cmd *cobra.Command, status *app.Status) {
	idx := status.Index
	cmd.Printf("Events:          %d (%d free)\n", idx.TotalEvents, idx.FreeEvents)
	if idx.FirstEventDate != nil && idx.LastEventDate != nil {
		cmd.Printf("Date range:      %s to %s\n",
			idx.FirstEventDate.Format(types.DateLayout), idx.LastEventDate.Format(types.DateLayout))
	}
	cmd.Printf("Schema:          %s (%s)\n", idx.SchemaVersion, idx.BuildMode)
	cmd.Printf("Embedder:        %s/%s (%d dimensions)\n",
		status.EmbeddingProvider, status.EmbeddingModel, status.EmbeddingDim)
	if idx.EmbeddingDim > 0 {
		cmd.Printf("Stored vectors:  %s (%d dimensions)\n", idx.EmbeddingModel, idx.EmbeddingDim)
		if idx.EmbeddingDim != status.EmbeddingDim {
			cmd.Println("Warning: stored dimension differs from the configured embedder; run `eventsage reembed`")
		}
	}
	cmd.Printf("Answers:         %s\n", status.AnswerProvider)
}
