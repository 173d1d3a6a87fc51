package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/switchback-sms/switchback"
	"github.com/switchback-sms/switchback/internal/tui"
	"github.com/switchback-sms/switchback/pkg/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Check survey documents for errors",
	Long:  `Parses survey YAML files, checks every field rule, and verifies the step graph has no cycles. Without arguments, validates every survey in the surveys directory.`,
	Run: func(cmd *cobra.Command, args []string) {
		if !runValidate(cmd, args) {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) bool {
	paths := args
	if len(paths) == 0 {
		dir, _ := cmd.Flags().GetString("surveys")
		entries, err := os.ReadDir(dir)
		if err != nil {
			fmt.Println(tui.Fail(fmt.Sprintf("cannot read surveys directory %s: %v", dir, err)))
			return false
		}
		for _, e := range entries {
			if !e.IsDir() && len(e.Name()) > 5 && e.Name()[len(e.Name())-5:] == ".yaml" {
				paths = append(paths, dir+"/"+e.Name())
			}
		}
		if len(paths) == 0 {
			fmt.Println(tui.Warn("no survey files found in " + dir))
			return true
		}
	}

	allValid := true
	for _, path := range paths {
		if !validateFile(path) {
			allValid = false
		}
	}
	return allValid
}

func validateFile(path string) bool {
	raw, err := os.ReadFile(path)
	if err != nil {
		fmt.Println(tui.Fail(fmt.Sprintf("%s: %v", path, err)))
		return false
	}

	warnings, err := switchback.ValidateDocument(raw)
	if err != nil {
		fmt.Println(tui.Fail(fmt.Sprintf("%s: invalid", path)))
		var parseErr *schema.ParseError
		if errors.As(err, &parseErr) {
			for _, e := range parseErr.Errors {
				fmt.Println("  " + tui.Fail("✗ ") + e.Error())
			}
		} else {
			fmt.Println("  " + tui.Fail("✗ ") + err.Error())
		}
		return false
	}

	fmt.Println(tui.Success(fmt.Sprintf("%s: valid ✅", path)))
	for _, w := range warnings {
		fmt.Println("  " + tui.Warn("⚠ "+w))
	}
	return true
}
