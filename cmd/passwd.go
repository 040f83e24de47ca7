// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var passwdRekdf bool

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the master password and/or rekey the KDF seed",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := requireVaultPath(cmd)
		if err != nil {
			return err
		}
		db, _, err := openVault(cmd, path)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.ErrOrStderr(), "New password:")
		newComposite, err := buildComposite(cmd, true)
		if err != nil {
			return err
		}

		kdfImpl := db.Data().KDF
		if passwdRekdf {
			if err := kdfImpl.RandomizeSeed(); err != nil {
				return err
			}
		}

		rawKey, err := newComposite.RawKey()
		if err != nil {
			return err
		}
		transformed, err := kdfImpl.Transform(context.Background(), rawKey)
		if err != nil {
			return err
		}
		db.Data().SetTransformedKey(transformed)

		return saveVault(db, path)
	},
}

func init() {
	rootCmd.AddCommand(passwdCmd)
	passwdCmd.Flags().BoolVar(&passwdRekdf, "rekey-kdf", false, "also randomize the KDF transform seed")
}
