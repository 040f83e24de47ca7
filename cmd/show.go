// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keepctl/keepctl/internal/model"
)

var showPasswords bool

var showCmd = &cobra.Command{
	Use:   "show <uuid-or-title>",
	Short: "Show an entry's attributes",
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
		e.Times.Access()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "UUID:     %s\n", e.UUID)
		if g := e.Group(); g != nil {
			fmt.Fprintf(out, "Group:    %s\n", g.Name)
		}
		fmt.Fprintf(out, "Title:    %s\n", e.Title())
		fmt.Fprintf(out, "Username: %s\n", e.UserName())
		if showPasswords {
			fmt.Fprintf(out, "Password: %s\n", e.Password())
		} else {
			fmt.Fprintln(out, "Password: (hidden, use --show-password)")
		}
		fmt.Fprintf(out, "URL:      %s\n", e.URL())
		if notes := e.Notes(); notes != "" {
			fmt.Fprintf(out, "Notes:    %s\n", notes)
		}
		if len(e.Tags) > 0 {
			fmt.Fprintf(out, "Tags:     %v\n", e.Tags)
		}
		fmt.Fprintf(out, "Modified: %s\n", e.Times.LastModificationTime.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "History:  %d prior version(s)\n", len(e.History))

		for key, v := range e.Attributes {
			switch key {
			case model.AttrTitle, model.AttrUserName, model.AttrPassword, model.AttrURL, model.AttrNotes:
				continue
			}
			if v.Protected && !showPasswords {
				fmt.Fprintf(out, "%s: (hidden, protected)\n", key)
				continue
			}
			fmt.Fprintf(out, "%s: %s\n", key, v.Value)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showPasswords, "show-password", false, "reveal protected attribute values")
}
