package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/koscakluka/ema-live/core/transport"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema [message]",
	Short: "Print the JSON schema of the wire messages",
	Long: `Print the JSON schema of the text messages exchanged with the agent.

Without an argument every schema is printed, keyed by message name:
  upstream.text, upstream.image, downstream.text`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		schemas := transport.Schemas()

		var out any = schemas
		if len(args) == 1 {
			schema, ok := schemas[args[0]]
			if !ok {
				return fmt.Errorf("unknown message %q, expected one of %v", args[0], slices.Sorted(maps.Keys(schemas)))
			}
			out = schema
		}

		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode schema: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}
