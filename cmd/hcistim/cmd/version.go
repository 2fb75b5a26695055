package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the version of the hcistim tool.
const Version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of hcistim",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("hcistim version %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
