package gen

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generators for docs and packaging",
	Long:  `Generators for docs and packaging`,
}

func init() {
	RootCmd.AddCommand(ManPagesCmd)
}
