package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phantodev/oficinas-chat/internal/sync"
)

var sendTo string

var sendCmd = &cobra.Command{
	Use:   "send <message...>",
	Short: "Send a single message without opening the chat view",
	Long: `Send one message to a user or into an existing conversation and exit.

Examples:
  oficinas-chat send --to bob "see you at the workshop"
  oficinas-chat send --to conversation:c123 "running late"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendTo, "to", "t", "", "recipient user id or conversation id (required)")
	_ = sendCmd.MarkFlagRequired("to")
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	content := strings.Join(args, " ")

	me, _, err := orch.CurrentUser(ctx)
	if err != nil {
		return err
	}

	conv := parseConversationID(sendTo)
	if !strings.HasPrefix(sendTo, "conversation:") {
		// recipient is a user: resolve or create the pair's conversation
		conv, err = orch.ResolveConversation(ctx, parseUserID(sendTo))
		if err != nil {
			return err
		}
	}

	sender := sync.NewSender(client, log, collector)
	msg, err := sender.Send(ctx, conv, me, content)
	if err != nil {
		var sendErr *sync.SendError
		if errors.As(err, &sendErr) {
			return fmt.Errorf("%s: %w", sendErr.Message(), err)
		}
		return err
	}

	fmt.Printf("Sent %s to %s\n", msg.ID.String(), conv.String())
	return nil
}
