// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keepctl/keepctl/internal/model"
)

var (
	addGroup    string
	addUserName string
	addPassword string
	addURL      string
	addNotes    string
)

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a new entry",
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

		group, err := resolveGroup(db, addGroup)
		if err != nil {
			return err
		}

		e := model.NewEntry(db)
		e.Set(model.AttrTitle, args[0], false)
		e.Set(model.AttrUserName, addUserName, false)
		e.Set(model.AttrPassword, addPassword, true)
		e.Set(model.AttrURL, addURL, false)
		e.Set(model.AttrNotes, addNotes, false)
		if err := db.AddEntry(group, e); err != nil {
			return err
		}

		if err := saveVault(db, path); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), e.UUID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().StringVar(&addGroup, "group", "", "group path to add the entry under (default: root)")
	addCmd.Flags().StringVarP(&addUserName, "username", "u", "", "username")
	addCmd.Flags().StringVarP(&addPassword, "password", "p", "", "password")
	addCmd.Flags().StringVar(&addURL, "url", "", "URL")
	addCmd.Flags().StringVar(&addNotes, "notes", "", "notes")
}
