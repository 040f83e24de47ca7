// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var locateCmd = &cobra.Command{
	Use:   "locate <query>",
	Short: "Find entries whose title, username, or URL contains query",
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

		c, err := openCache(db, path)
		if err != nil {
			return err
		}
		defer c.Close()

		refs, err := c.Locate(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, r := range refs {
			fmt.Fprintf(out, "%s  %s/%s  %s\n", r.UUID, r.GroupPath, r.Title, r.UserName)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(locateCmd)
}
