package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"ls"},
	Short:   "List your conversations",
	Long: `List your conversations, most recent activity first. Conversations whose
last message came from the other participant are marked unread (*).`,
	RunE: runConversations,
}

func runConversations(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	view := orch.ListView()
	if err := view.Open(ctx); err != nil {
		return fmt.Errorf("load conversations: %w", err)
	}
	defer view.Close(ctx)

	conversations := view.Snapshot()

	// pull the full list for a one-shot command
	for view.HasNextPage() {
		if err := view.LoadMore(ctx); err != nil {
			return fmt.Errorf("load conversations: %w", err)
		}
		conversations = view.Snapshot()
	}

	if len(conversations) == 0 {
		fmt.Println("No conversations yet. Start one with 'oficinas-chat open <user-id>'.")
		return nil
	}

	fmt.Printf("Conversations (%d):\n\n", len(conversations))
	for _, c := range conversations {
		unread := " "
		if c.HasUnread() {
			unread = "*"
		}

		name := displayName(c)
		line := fmt.Sprintf("%s [%s] %-24s", unread, initials(name), name)
		if c.LastMessageText != nil {
			line += "  " + preview(*c.LastMessageText, 40)
		}
		if c.LastMessageAt != nil {
			line += fmt.Sprintf("  (%s)", dayLabel(*c.LastMessageAt, nowFunc()))
		}
		fmt.Println(line)

		if verbose {
			fmt.Printf("    id: %s\n", c.ID.String())
		}
	}

	return nil
}
