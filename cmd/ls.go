// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls [group-path]",
	Short: "List entries in a group, via the cached read model",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := requireVaultPath(cmd)
		if err != nil {
			return err
		}
		db, _, err := openVault(cmd, path)
		if err != nil {
			return err
		}

		groupPath := ""
		if len(args) == 1 {
			groupPath = strings.Trim(args[0], "/")
		}

		c, err := openCache(db, path)
		if err != nil {
			return err
		}
		defer c.Close()

		refs, err := c.List(groupPath)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, r := range refs {
			fmt.Fprintf(out, "%s  %-30s  %s\n", r.UUID, r.Title, r.UserName)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
}
