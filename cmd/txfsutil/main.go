// Command txfsutil formats, inspects, and exports txfs volume images.
package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var color = isatty.IsTerminal(os.Stdout.Fd())

func main() {
	root := &cobra.Command{
		Use:           "txfsutil",
		Short:         "format, inspect, and export txfs volume images",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newFormatCmd())
	root.AddCommand(newLsCmd())
	root.AddCommand(newCatCmd())
	root.AddCommand(newStatCmd())
	root.AddCommand(newSnapshotCmd())
	root.AddCommand(newRestoreCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func colorize(code, s string) string {
	if !color {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}
