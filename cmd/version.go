package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the askbridge version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("askbridge %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
