package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var wipeData bool

var initSchemaCmd = &cobra.Command{
	Use:   "init-schema",
	Short: "Apply the chat schema to the backend",
	Long: `Apply the chat schema: tables, indexes, the last-message denormalization
event, and the server-side conversation/read functions. Safe to run
repeatedly; every definition is IF NOT EXISTS.

With --wipe all chat data is deleted first. Intended for development
databases only.`,
	RunE: runInitSchema,
}

func init() {
	initSchemaCmd.Flags().BoolVar(&wipeData, "wipe", false, "delete all chat data before applying the schema")
}

func runInitSchema(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if wipeData {
		if err := client.WipeData(ctx); err != nil {
			return fmt.Errorf("wipe data: %w", err)
		}
		fmt.Println("Data wiped.")
	}

	// the root command already applied the schema on connect; running it
	// again here confirms it against the current binary
	if err := client.InitSchema(ctx); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	fmt.Println("Schema applied.")
	return nil
}
