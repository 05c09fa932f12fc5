package commands

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vesseleye/internal/auth"
)

// NewAPIKeyCommand generates a key and the hash to list under
// server.api_key_hashes. It does not contact the server.
func NewAPIKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "apikey [key]",
		Short: "Generate an API key and its bcrypt hash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) == 1 {
				key = args[0]
			} else {
				buf := make([]byte, 24)
				if _, err := rand.Read(buf); err != nil {
					return fmt.Errorf("failed to generate key: %w", err)
				}
				key = hex.EncodeToString(buf)
			}

			hash, err := auth.HashAPIKey(key)
			if err != nil {
				return fmt.Errorf("failed to hash key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "key:  %s\nhash: %s\n", key, hash)
			return nil
		},
	}
}
