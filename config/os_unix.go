//go:build !windows

package config

import (
	"os"

	"golang.org/x/term"
)

const forbiddenFileChars = ""

// EnableColorOutput checks if colorized output is possible.
func EnableColorOutput(stream *os.File) bool {
	return os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(stream.Fd()))
}
