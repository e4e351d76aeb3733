package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the alpaquero CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("alpaquero version %s\n", version)
		fmt.Println("A bar-driven trading engine for backtests and paper trading")
		fmt.Println("https://github.com/alpaquero/alpaquero")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
