package main

import (
	"fmt"

	"github.com/ZentaChain/zentalk-chat/pkg/crypto"
	"github.com/spf13/cobra"
)

func genkeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "genkey",
		Short: "Print a new random pre-shared key for crypto.key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.GenerateKey()
			if err != nil {
				return fmt.Errorf("failed to generate key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), crypto.KeyHex(key))
			return nil
		},
	}
}
