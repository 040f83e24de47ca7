// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/keepctl/keepctl/internal/model"
)

var (
	editTitle    string
	editUserName string
	editPassword string
	editURL      string
	editNotes    string
)

var editCmd = &cobra.Command{
	Use:   "edit <uuid-or-title>",
	Short: "Edit an existing entry, pushing its prior state into history",
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

		changed := cmd.Flags().Changed("title") ||
			cmd.Flags().Changed("username") ||
			cmd.Flags().Changed("password") ||
			cmd.Flags().Changed("url") ||
			cmd.Flags().Changed("notes")
		if !changed {
			return cmdError(cmd, "no fields given to edit")
		}

		e.PushHistory(db.Metadata())
		if cmd.Flags().Changed("title") {
			e.Set(model.AttrTitle, editTitle, false)
		}
		if cmd.Flags().Changed("username") {
			e.Set(model.AttrUserName, editUserName, false)
		}
		if cmd.Flags().Changed("password") {
			e.Set(model.AttrPassword, editPassword, true)
		}
		if cmd.Flags().Changed("url") {
			e.Set(model.AttrURL, editURL, false)
		}
		if cmd.Flags().Changed("notes") {
			e.Set(model.AttrNotes, editNotes, false)
		}
		e.Times.Touch()

		if err := saveVault(db, path); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
	editCmd.Flags().StringVar(&editTitle, "title", "", "new title")
	editCmd.Flags().StringVarP(&editUserName, "username", "u", "", "new username")
	editCmd.Flags().StringVarP(&editPassword, "password", "p", "", "new password")
	editCmd.Flags().StringVar(&editURL, "url", "", "new URL")
	editCmd.Flags().StringVar(&editNotes, "notes", "", "new notes")
}
