package cmd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "Manage chat conversations",
}

var conversationsListLimit int32

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, most recently updated first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		convs, err := a.Sessions.List(cmd.Context(), conversationsListLimit)
		if err != nil {
			return err
		}
		if len(convs) == 0 {
			fmt.Println("No conversations yet.")
			return nil
		}

		for _, conv := range convs {
			title := conv.Title
			if title == "" {
				title = "(untitled)"
			}
			count, err := a.Sessions.MessageCount(cmd.Context(), conv.ID)
			if err != nil {
				return err
			}
			fmt.Printf("%s  %s  %3d msgs  %s\n", conv.ID, conv.UpdatedAt.Format("2006-01-02 15:04"), count, title)
		}
		return nil
	},
}

var conversationsShowCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Show a conversation's messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid conversation ID %q: %w", args[0], err)
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		conv, err := a.Sessions.Get(cmd.Context(), id)
		if err != nil {
			return err
		}

		msgs, err := a.Sessions.Messages(cmd.Context(), id)
		if err != nil {
			return err
		}

		title := conv.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%s\n%s\n\n", title, strings.Repeat("-", len(title)))

		for _, msg := range msgs {
			fmt.Printf("[%s]\n%s\n", msg.Role, msg.Content)
			for _, src := range msg.Sources {
				fmt.Printf("  - %s (%.0f%%)\n", src.DocumentName, src.Similarity*100)
			}
			fmt.Println()
		}
		return nil
	},
}

var conversationsRenameCmd = &cobra.Command{
	Use:   "rename <conversation-id> <title>",
	Short: "Rename a conversation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid conversation ID %q: %w", args[0], err)
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Sessions.Rename(cmd.Context(), id, args[1]); err != nil {
			return err
		}
		fmt.Printf("Renamed conversation %s.\n", id)
		return nil
	},
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <conversation-id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid conversation ID %q: %w", args[0], err)
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Sessions.SoftDelete(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Deleted conversation %s.\n", id)
		return nil
	},
}

func init() {
	conversationsListCmd.Flags().Int32Var(&conversationsListLimit, "limit", 50, "maximum number of conversations to list")
	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsShowCmd)
	conversationsCmd.AddCommand(conversationsRenameCmd)
	conversationsCmd.AddCommand(conversationsDeleteCmd)
	rootCmd.AddCommand(conversationsCmd)
}
