package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mikey/signal-mail-bridge/internal/credential"
)

func newCredentialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage the mail password in the system keyring",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <mail user>",
		Short: "Store the mail password read from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.ErrOrStderr(), "Password for %s: ", args[0])
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				return fmt.Errorf("password is empty")
			}

			ring, err := credential.Open()
			if err != nil {
				return err
			}
			if err := credential.Set(ring, args[0], password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "Stored.")
			return nil
		},
	})

	return cmd
}
