package cli

import (
	"context"
	"fmt"
	"strings"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/phantodev/oficinas-chat/internal/models"
	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:   "open <user-id>",
	Short: "Open (or create) the conversation with another user",
	Long: `Open the conversation between you and another user, creating it when it
does not exist yet. There is exactly one conversation per pair of users,
no matter who opened it first.

Examples:
  oficinas-chat open bob
  oficinas-chat open user:bob`,
	Args: cobra.ExactArgs(1),
	RunE: runOpen,
}

func runOpen(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	conv, err := orch.ResolveConversation(ctx, parseUserID(args[0]))
	if err != nil {
		return err
	}

	fmt.Printf("Conversation: %s\n", conv.String())
	fmt.Printf("Chat with 'oficinas-chat chat %s'\n", conv.String())
	return nil
}

// parseUserID accepts a bare id or a full record id.
func parseUserID(arg string) surrealmodels.RecordID {
	return models.UserRecord(strings.TrimPrefix(arg, "user:"))
}

// parseConversationID accepts a bare id or a full record id.
func parseConversationID(arg string) surrealmodels.RecordID {
	return models.ConversationRecord(strings.TrimPrefix(arg, "conversation:"))
}
