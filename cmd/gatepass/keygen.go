package main

import (
	"fmt"

	"gatepass/internal/infra/crypto"

	"github.com/spf13/cobra"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new holder or operator key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		signer, err := crypto.GenerateKeySigner()
		if err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "address: %s\n", signer.Address())
		fmt.Fprintf(out, "key:     %s\n", signer.PrivateKeyHex())
		return nil
	},
}
