// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"
)

var rmPermanent bool

var rmCmd = &cobra.Command{
	Use:   "rm <uuid-or-title>",
	Short: "Remove an entry, recycling it unless --permanent is given",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := requireVaultPath(cmd)
		if err != nil {
			return err
		}
		db, _, err := openVault(cmd, path)
		if err != nil {
			return err
		}

		e, err := resolveEntry(db, args[0])
		if err != nil {
			return err
		}

		if rmPermanent {
			if err := db.PermanentlyDeleteEntry(e); err != nil {
				return err
			}
		} else {
			if err := db.RecycleEntry(e); err != nil {
				return err
			}
		}

		return saveVault(db, path)
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
	rmCmd.Flags().BoolVar(&rmPermanent, "permanent", false, "delete for good instead of moving to the recycle bin")
}
