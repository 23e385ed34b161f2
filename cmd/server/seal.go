package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/damacus/iron-gallery/internal/encryption"
	"github.com/damacus/iron-gallery/internal/utils"
	"github.com/spf13/cobra"
)

// newSealCmd encrypts a local file into the format the gallery decrypts
func newSealCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "seal <input> [output]",
		Short: "Encrypt an image for upload as an encrypted file",
		Long: `Encrypt an image with a password. The output defaults to the input
name with the encrypted suffix appended, which the gallery uses to detect
files that need the password.

The password may also be given through GALLERY_SEAL_PASSWORD.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("GALLERY_SEAL_PASSWORD")
			}
			if password == "" {
				return errors.New("a password is required (--password or GALLERY_SEAL_PASSWORD)")
			}

			in := args[0]
			out := encryption.AddSuffix(in)
			if len(args) == 2 {
				out = args[1]
			}

			data, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			sealed, err := encryption.Encrypt(password, data)
			if err != nil {
				return fmt.Errorf("encrypt %s: %w", in, err)
			}
			if err := os.WriteFile(out, sealed, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", out, utils.FormatFileSize(int64(len(sealed))))
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Encryption password")
	return cmd
}
