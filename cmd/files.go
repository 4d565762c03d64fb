package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List ingestable files in the documents folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		files, err := a.Pipeline.FolderContents(a.Config.DocumentsRoot)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Printf("No supported files in %s.\n", a.Config.DocumentsRoot)
			return nil
		}

		for _, f := range files {
			fmt.Printf("%-6s %10d  %s  %s\n", f.Type, f.Size, f.ModifiedAt.Format("2006-01-02 15:04"), f.Name)
		}
		fmt.Printf("\n%d files.\n", len(files))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(filesCmd)
}
