// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keepctl/keepctl/internal/model"
)

var extractShowPasswords bool

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Dump the full group/entry tree as plain text",
	Long: `extract walks the whole database and prints every group and entry.
Protected attributes are redacted unless --show-passwords is given, since
the output is meant to be safe to paste into a bug report by default.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := requireVaultPath(cmd)
		if err != nil {
			return err
		}
		db, _, err := openVault(cmd, path)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		var walk func(g *model.Group, depth int)
		walk = func(g *model.Group, depth int) {
			indent := ""
			for i := 0; i < depth; i++ {
				indent += "  "
			}
			name := g.Name
			if g.IsRoot() {
				name = "/"
			}
			fmt.Fprintf(out, "%s%s/\n", indent, name)
			for _, e := range g.Entries() {
				fmt.Fprintf(out, "%s  - %s", indent, e.Title())
				if u := e.UserName(); u != "" {
					fmt.Fprintf(out, " (%s)", u)
				}
				fmt.Fprintln(out)
				for key, v := range e.Attributes {
					switch key {
					case model.AttrTitle, model.AttrUserName:
						continue
					}
					val := v.Value
					if v.Protected && !extractShowPasswords {
						val = "<redacted>"
					}
					fmt.Fprintf(out, "%s      %s: %s\n", indent, key, val)
				}
			}
			for _, c := range g.Groups() {
				walk(c, depth+1)
			}
		}
		walk(db.Root(), 0)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().BoolVar(&extractShowPasswords, "show-passwords", false, "include protected attribute values in plain text")
}
