package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koopa0/docuchat/internal/knowledge"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the knowledge base",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()

		docs, err := a.Knowledge.ListDocuments(ctx, nil)
		if err != nil {
			return err
		}

		fmt.Printf("Documents root: %s\n", a.Config.DocumentsRoot)
		if a.Embedder.Available(ctx) {
			fmt.Println("Embedding service: available")
		} else {
			fmt.Println("Embedding service: unavailable")
		}
		fmt.Println()

		if len(docs) == 0 {
			fmt.Println("No documents ingested yet. Run \"docuchat ingest\" first.")
			return nil
		}

		var completed int
		for _, doc := range docs {
			chunks, err := a.Knowledge.ChunkCount(ctx, doc.ID)
			if err != nil {
				return err
			}
			line := fmt.Sprintf("%-10s %6d chunks  %s", doc.Status, chunks, doc.FileName)
			if doc.Status == knowledge.StatusFailed && doc.ErrorMessage != "" {
				line += fmt.Sprintf("  (%s)", doc.ErrorMessage)
			}
			fmt.Println(line)
			if doc.Status == knowledge.StatusCompleted {
				completed++
			}
		}

		fmt.Printf("\n%d documents, %d completed.\n", len(docs), completed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
