package config

import (
	"strings"

	"github.com/google/go-cmp/cmp"
)

// Diff renders a line diff between two raw configuration payloads, empty
// when they match. Used to log what a reload actually changed.
func Diff(previous, current []byte) string {
	return cmp.Diff(splitLines(previous), splitLines(current))
}

func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return []string{""}
	}
	return strings.Split(text, "\n")
}
