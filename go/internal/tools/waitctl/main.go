// waitctl is the admin CLI for the waiting ledger database.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// errExit signals a non-zero exit after the command has reported its own error
var errExit = errors.New("exit")

// configPath holds the --config persistent flag
var configPath string

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errExit) {
			fmt.Fprintf(stderr, "waitctl: %v\n", err) //nolint:errcheck // best-effort stderr
		}
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "waitctl",
		Short:         "Administer the waiting ledger",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml",
		"path to the ledger config file")
	root.CompletionOptions.DisableDefaultCmd = true
	root.AddCommand(
		newMigrateCmd(stdout, stderr),
		newSweepCmd(stdout, stderr),
		newRoomCmd(stdout, stderr),
		newCheckCmd(stdout, stderr),
	)
	return root
}
