// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"hermannm.dev/devlog"
)

var (
	vaultPath    string
	keyFilePath  string
	debug        bool
	logLevel     slog.LevelVar
	clipTimeoutS int
)

var rootCmd = &cobra.Command{
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	Use:   "keepctl",
	Short: "Command-line password database",
	Long: `keepctl opens, edits, and merges encrypted password databases
compatible with the KDBX3.1/KDBX4 container format.`,
}

// Execute adds all child commands to the root command and runs it. It is
// called once by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	slog.SetDefault(slog.New(devlog.NewHandler(os.Stdout, &devlog.Options{
		Level: &logLevel,
	})))

	rootCmd.PersistentFlags().StringVarP(&vaultPath, "file", "f", "", "path to the .kdbx database file")
	rootCmd.PersistentFlags().StringVar(&keyFilePath, "keyfile", "", "optional key file component")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVar(&clipTimeoutS, "clip-timeout", 15, "seconds before clip clears the clipboard")

	viper.SetEnvPrefix("KEEPCTL")
	viper.AutomaticEnv()

	cobra.OnInitialize(func() {
		if debug {
			logLevel.Set(slog.LevelDebug)
		}
	})
}

// requireVaultPath resolves the --file flag, falling back to the
// KEEPCTL_FILE environment variable (bound automatically by viper's env
// prefix), and fails loudly rather than guessing a default path.
func requireVaultPath(cmd *cobra.Command) (string, error) {
	if vaultPath == "" {
		vaultPath = viper.GetString("file")
	}
	if vaultPath == "" {
		return "", cmdError(cmd, "no database file given: use --file or KEEPCTL_FILE")
	}
	return vaultPath, nil
}

func cmdError(cmd *cobra.Command, msg string) error {
	return &usageError{cmd: cmd, msg: msg}
}

type usageError struct {
	cmd *cobra.Command
	msg string
}

func (e *usageError) Error() string { return e.msg }
