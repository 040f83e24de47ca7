// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bytes"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/spf13/cobra"
)

var clipCmd = &cobra.Command{
	Use:   "clip <uuid-or-title>",
	Short: "Copy an entry's password to the clipboard, clearing it after a timeout",
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
		password := e.Password()
		if password == "" {
			return cmdError(cmd, "entry has no password set")
		}

		if err := copyToClipboard(password); err != nil {
			return cmdError(cmd, "copying to clipboard: "+err.Error())
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "copied, clearing in %ds\n", clipTimeoutS)

		time.Sleep(time.Duration(clipTimeoutS) * time.Second)
		if err := copyToClipboard(""); err != nil {
			return cmdError(cmd, "clearing clipboard: "+err.Error())
		}
		return nil
	},
}

// copyToClipboard pipes text to the platform clipboard utility. None of
// this program's dependencies offer a clipboard abstraction, so this
// shells out to whichever tool the host platform provides rather than
// fabricating one.
func copyToClipboard(text string) error {
	var name string
	var args []string
	switch runtime.GOOS {
	case "darwin":
		name, args = "pbcopy", nil
	case "windows":
		name, args = "clip", nil
	default:
		if _, err := exec.LookPath("wl-copy"); err == nil {
			name, args = "wl-copy", nil
		} else {
			name, args = "xclip", []string{"-selection", "clipboard"}
		}
	}

	c := exec.Command(name, args...)
	c.Stdin = bytes.NewReader([]byte(text))
	return c.Run()
}

func init() {
	rootCmd.AddCommand(clipCmd)
}
