package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/koopa0/docuchat/internal/app"
	"github.com/koopa0/docuchat/internal/chat"
)

var chatConversationID string

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat with your documents",
	Long: `Chat answers questions using the ingested documents. With a message
argument it runs a single turn and exits; without one it starts an
interactive session. Use --conversation to continue an earlier
conversation.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		var conversationID *uuid.UUID
		if chatConversationID != "" {
			id, err := uuid.Parse(chatConversationID)
			if err != nil {
				return fmt.Errorf("invalid conversation ID %q: %w", chatConversationID, err)
			}
			conversationID = &id
		}

		if len(args) == 1 {
			result, err := a.Chat.Chat(cmd.Context(), args[0], conversationID, nil)
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		}

		return runInteractiveChat(cmd, a, conversationID)
	},
}

func runInteractiveChat(cmd *cobra.Command, a *app.App, conversationID *uuid.UUID) error {
	fmt.Println("docuchat - ask a question, or type \"exit\" to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}
		if message == "exit" || message == "quit" {
			break
		}

		result, err := a.Chat.Chat(cmd.Context(), message, conversationID, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		conversationID = &result.ConversationID
		printResult(result)
	}
	return scanner.Err()
}

func printResult(result *chat.Result) {
	fmt.Println()
	fmt.Println(result.Message)
	if len(result.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for i, src := range result.Sources {
			fmt.Printf("  %d. %s (%.0f%%)\n", i+1, src.DocumentName, src.RelevanceScore*100)
		}
	}
	fmt.Println()
}

func init() {
	chatCmd.Flags().StringVarP(&chatConversationID, "conversation", "c", "", "conversation ID to continue")
	rootCmd.AddCommand(chatCmd)
}
