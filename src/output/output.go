// Package output renders the human-facing job log: framed sections,
// status icons and CI folding markers.
package output

import (
	"os"
)

// Colors for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
)

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// UseColor returns true if colored output should be used.
// Respects NO_COLOR env, TERM=dumb, and terminal detection.
func UseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTerminal() || IsCI()
}

// Warning returns text highlighted as a warning if color is enabled.
func Warning(text string, color bool) string {
	if !color {
		return text
	}
	return colorYellow + text + colorReset
}

// Failure returns text highlighted as an error if color is enabled.
func Failure(text string, color bool) string {
	if !color {
		return text
	}
	return colorRed + text + colorReset
}
