package ui

import (
	"strings"
	"testing"
)

func TestCenter(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		width    int
		expected string
	}{
		{
			name:     "text shorter than width",
			text:     "Hello",
			width:    15,
			expected: "     Hello",
		},
		{
			name:     "text same as width",
			text:     "Hello",
			width:    5,
			expected: "Hello",
		},
		{
			name:     "text longer than width",
			text:     "Hello World",
			width:    5,
			expected: "Hello World",
		},
		{
			name:     "even padding",
			text:     "Test",
			width:    10,
			expected: "   Test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := center(tt.text, tt.width)
			if result != tt.expected {
				t.Errorf("center(%q, %d) = %q; want %q", tt.text, tt.width, result, tt.expected)
			}
		})
	}
}

func TestPrintFunctionsDoNotPanic(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{name: "Header", fn: func() { Header("Import Summary") }},
		{name: "Step", fn: func() { Step(1, 4, "Scanning directory") }},
		{name: "Success", fn: func() { Success("Imported 12 transactions") }},
		{name: "Info", fn: func() { Info("3 duplicates skipped") }},
		{name: "Warning", fn: func() { Warning("1 file failed to parse") }},
		{name: "Error", fn: func() { Error("database unavailable") }},
		{name: "BlueText", fn: func() { BlueText("statements/usaa") }},
		{name: "YellowText", fn: func() { YellowText("dry run, nothing written") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn()
		})
	}
}

func TestHeaderCentering(t *testing.T) {
	centered := center("Test", headerWidth)
	if !strings.Contains(centered, "Test") {
		t.Errorf("center() should contain original text")
	}
	if len(centered) >= headerWidth {
		t.Errorf("left-padded text should be shorter than the full width")
	}
}
