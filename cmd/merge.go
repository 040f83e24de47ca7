// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keepctl/keepctl/internal/merge"
	"github.com/keepctl/keepctl/internal/model"
)

var mergeSourceKeyfile string

var mergeCmd = &cobra.Command{
	Use:   "merge <source-file>",
	Short: "Merge another database into the one opened with --file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := requireVaultPath(cmd)
		if err != nil {
			return err
		}
		target, _, err := openVault(cmd, path)
		if err != nil {
			return err
		}

		prevKeyfile := keyFilePath
		if mergeSourceKeyfile != "" {
			keyFilePath = mergeSourceKeyfile
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "Source database:")
		source, _, err := openVault(cmd, args[0])
		keyFilePath = prevKeyfile
		if err != nil {
			return err
		}

		res, err := merge.Merge(target, source, model.MergeModeSynchronize)
		if err != nil {
			return err
		}

		if err := saveVault(target, path); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "groups added/updated: %d/%d\n", res.GroupsAdded, res.GroupsUpdated)
		fmt.Fprintf(out, "entries added/updated/duplicated: %d/%d/%d\n", res.EntriesAdded, res.EntriesUpdated, res.EntriesDuplicated)
		fmt.Fprintf(out, "tombstones applied: %d\n", res.TombstonesApplied)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
	mergeCmd.Flags().StringVar(&mergeSourceKeyfile, "source-keyfile", "", "key file for the source database, if different from --keyfile")
}
