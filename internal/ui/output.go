// Package ui prints colored terminal output for the import CLI.
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
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

// Header prints a banner with the given title.
func Header(text string) {
	line := strings.Repeat("=", headerWidth)
	headerColor.Println(line)
	headerColor.Println(center(text, headerWidth))
	headerColor.Println(line)
}

// Step prints a numbered progress step.
func Step(current, total int, text string) {
	stepColor.Printf("[%d/%d] ", current, total)
	fmt.Println(text)
}

// Success prints a green checkmark line.
func Success(text string) {
	successColor.Printf("✓ %s\n", text)
}

// Info prints a neutral informational line.
func Info(text string) {
	infoColor.Printf("  %s\n", text)
}

// Warning prints a yellow warning line.
func Warning(text string) {
	warningColor.Printf("⚠ %s\n", text)
}

// Error prints a red error line.
func Error(text string) {
	errorColor.Printf("✗ %s\n", text)
}

// BlueText prints text in blue.
func BlueText(text string) {
	stepColor.Println(text)
}

// YellowText prints text in yellow.
func YellowText(text string) {
	warningColor.Println(text)
}

// center left-pads text so it appears centered within width. Text wider
// than width is returned unchanged.
func center(text string, width int) string {
	if len(text) >= width {
		return text
	}
	padding := (width - len(text)) / 2
	return strings.Repeat(" ", padding) + text
}
