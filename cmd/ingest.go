package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koopa0/docuchat/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [folder]",
	Short: "Ingest documents into the knowledge base",
	Long: `Ingest converts, chunks, and embeds every supported document in the
folder (pdf, docx, pptx, xlsx, txt, md). Re-ingesting a file with the
same name replaces its previous version. The folder must be the
configured documents root.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		folder := a.Config.DocumentsRoot
		if len(args) == 1 {
			folder = args[0]
		}

		events, err := a.Pipeline.IngestFolder(cmd.Context(), folder)
		if err != nil {
			return err
		}

		for event := range events {
			switch event.Type {
			case ingest.EventProgress:
				fmt.Printf("[%d/%d] %s\n", event.Processed+1, event.Total, event.CurrentFile)
			case ingest.EventError:
				fmt.Printf("[%d/%d] %s: FAILED (%s)\n", event.Processed+1, event.Total, event.File, event.Error)
			case ingest.EventComplete:
				fmt.Printf("Done: processed %d/%d files.\n", event.Processed, event.Total)
			}
		}
		return cmd.Context().Err()
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
