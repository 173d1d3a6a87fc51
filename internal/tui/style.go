// Package tui holds terminal output styling for the CLI commands.
package tui

import (
	"fmt"

	"github.com/muesli/termenv"
)

var profile = termenv.ColorProfile()

// Success formats a message in green.
func Success(msg string) string {
	return termenv.String(msg).Foreground(profile.Color("#34d399")).String()
}

// Warn formats a message in amber.
func Warn(msg string) string {
	return termenv.String(msg).Foreground(profile.Color("#fbbf24")).String()
}

// Fail formats a message in red.
func Fail(msg string) string {
	return termenv.String(msg).Foreground(profile.Color("#f87171")).String()
}

// Faint formats de-emphasized helper text.
func Faint(msg string) string {
	return termenv.String(msg).Faint().String()
}

// Bold formats emphasized text.
func Bold(msg string) string {
	return termenv.String(msg).Bold().String()
}

// PrintBanner prints the CLI banner.
func PrintBanner() {
	lines := []string{
		`              _ _       _     _                _    `,
		` _____      _(_) |_ ___| |__ | |__   __ _  ___| | __`,
		`/ __\ \ /\ / / | __/ __| '_ \| '_ \ / _` + "`" + ` |/ __| |/ /`,
		`\__ \\ V  V /| | || (__| | | | |_) | (_| | (__|   < `,
		`|___/ \_/\_/ |_|\__\___|_| |_|_.__/ \__,_|\___|_|\_\`,
	}
	colors := []string{"#818cf8", "#a78bfa", "#c084fc", "#e879f9", "#f472b6"}

	fmt.Println()
	for i, line := range lines {
		fmt.Println(termenv.String(line).Foreground(profile.Color(colors[i%len(colors)])))
	}
	fmt.Println()
}
