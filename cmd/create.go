// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/keepctl/keepctl/internal/cipher"
	"github.com/keepctl/keepctl/internal/model"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new, empty database",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := requireVaultPath(cmd)
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil {
			return cmdError(cmd, path+" already exists")
		}

		composite, err := buildComposite(cmd, true)
		if err != nil {
			return err
		}

		db := model.NewDatabase()
		db.Data().CipherID = cipher.AES256
		db.Data().Compression = model.CompressionGzip

		kdfImpl, err := defaultKDF(cmd)
		if err != nil {
			return err
		}
		db.Data().KDF = kdfImpl

		rawKey, err := composite.RawKey()
		if err != nil {
			return err
		}
		transformed, err := kdfImpl.Transform(context.Background(), rawKey)
		if err != nil {
			return err
		}
		db.Data().SetTransformedKey(transformed)

		if err := saveVault(db, path); err != nil {
			return err
		}
		slog.Info("created database", "path", path)
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
}
