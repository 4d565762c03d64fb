package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/koopa0/docuchat/internal/config"
)

// Set at build time via -ldflags.
var (
	AppVersion = "dev"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("docuchat %s (commit %s, built %s)\n", AppVersion, GitCommit, BuildTime)

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		fmt.Println()
		fmt.Printf("Model:           %s\n", cfg.ModelName)
		fmt.Printf("Embedder:        %s\n", cfg.EmbedderModel)
		fmt.Printf("Documents root:  %s\n", cfg.DocumentsRoot)
		fmt.Printf("Chunk size:      %d tokens (overlap %d)\n", cfg.ChunkSize, cfg.ChunkOverlap)
		fmt.Printf("Database:        %s@%s:%d/%s\n", cfg.PostgresUser, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDBName)

		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			fmt.Printf("GEMINI_API_KEY:  %s\n", maskKey(key))
		} else {
			fmt.Println("GEMINI_API_KEY:  not set")
		}
		return nil
	},
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
