package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luma/brewd/cmd/gen"
)

var RootCmd = &cobra.Command{
	Use:   "brewd",
	Short: "A coffee machine you order from over TCP",
	Long: `brewd models a coffee machine with finite water and cup storage.

The server answers each order with whether it can be made and, if so,
when it will be ready. The client places a single order.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.AddCommand(StartCmd)
	RootCmd.AddCommand(OrderCmd)
	RootCmd.AddCommand(VersionCmd)
	RootCmd.AddCommand(gen.RootCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
