package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/switchback-sms/switchback"
	"github.com/switchback-sms/switchback/internal/tui"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the surveys in the surveys directory",
	Run: func(cmd *cobra.Command, args []string) {
		dir, _ := cmd.Flags().GetString("surveys")
		engine, err := switchback.New(dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ids, err := engine.Surveys()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(ids) == 0 {
			fmt.Println(tui.Faint("no surveys found in " + dir))
			return
		}

		for _, id := range ids {
			def, err := engine.Load(id)
			if err != nil {
				fmt.Printf("%s  %s\n", tui.Fail(id), tui.Faint("invalid: "+err.Error()))
				continue
			}
			fmt.Printf("%s  %s  %s\n",
				tui.Bold(def.Metadata.ID),
				tui.Faint("v"+def.Metadata.Version),
				def.Metadata.Name)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
