package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/switchback-sms/switchback"
	"github.com/switchback-sms/switchback/internal/tui"
	"github.com/switchback-sms/switchback/pkg/domain"
)

var chatCmd = &cobra.Command{
	Use:   "chat <survey-id>",
	Short: "Walk through a survey interactively",
	Long:  `Runs a survey in the terminal against an in-memory store, exactly as a subject would experience it over SMS. Useful for authoring and debugging.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir, _ := cmd.Flags().GetString("surveys")
		if err := runChat(dir, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(dir, surveyID string) error {
	engine, err := switchback.New(dir)
	if err != nil {
		return err
	}

	ctx := context.Background()
	const subject = "local-chat"

	_, consentText, err := engine.Start(ctx, subject, surveyID)
	if err != nil {
		return err
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		tui.PrintBanner()
		fmt.Println(tui.Faint("Replying as a survey subject. Ctrl-D to quit."))
		fmt.Println()
	}
	fmt.Println(tui.Bold("< ") + consentText)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(tui.Faint("> "))
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())

		reply, err := engine.Advance(ctx, subject, surveyID, input)
		if errors.Is(err, domain.ErrSessionNotFound) {
			fmt.Println(tui.Faint("session is over"))
			return nil
		}
		if err != nil {
			return err
		}

		if reply.Text != "" {
			fmt.Println(tui.Bold("< ") + reply.Text)
		}
		if reply.Done {
			fmt.Println()
			fmt.Println(tui.Success("Survey complete."))
			return nil
		}
	}
}
