package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "switchback",
	Short: "Switchback runs conversational SMS surveys",
	Long:  `Switchback walks subjects through YAML-defined surveys over SMS, one question per message, with consent gating and branching.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("surveys", "./surveys", "Directory containing survey YAML files")
}
