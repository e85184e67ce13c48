// Package ui provides colored terminal output helpers for the CLI.
package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

const headerWidth = 60

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	stepColor    = color.New(color.FgBlue, color.Bold)
	successColor = color.New(color.FgGreen)
	infoColor    = color.New(color.FgWhite)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	blueColor    = color.New(color.FgBlue)
	yellowColor  = color.New(color.FgYellow)
)

// center left-pads text so it sits in the middle of width columns. Text
// wider than the target comes back unchanged.
func center(text string, width int) string {
	if len(text) >= width {
		return text
	}
	return strings.Repeat(" ", (width-len(text))/2) + text
}

// Header prints a banner with the title centered between rules.
func Header(title string) {
	line := strings.Repeat("=", headerWidth)
	headerColor.Println(line)
	headerColor.Println(center(title, headerWidth))
	headerColor.Println(line)
}

// Step prints a numbered progress step, e.g. "[2/5] Parsing files".
func Step(current, total int, message string) {
	stepColor.Printf("[%d/%d] ", current, total)
	fmt.Println(message)
}

// Success prints a green checkmark line.
func Success(message string) {
	successColor.Printf("✓ %s\n", message)
}

// Info prints a plain informational line.
func Info(message string) {
	infoColor.Printf("  %s\n", message)
}

// Warning prints a yellow warning line.
func Warning(message string) {
	warnColor.Printf("! %s\n", message)
}

// Error prints a red error line.
func Error(message string) {
	errorColor.Printf("✗ %s\n", message)
}

// BlueText prints message in blue without any prefix.
func BlueText(message string) {
	blueColor.Println(message)
}

// YellowText prints message in yellow without any prefix.
func YellowText(message string) {
	yellowColor.Println(message)
}
