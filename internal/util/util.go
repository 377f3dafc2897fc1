// Package util holds the process-wide helpers shared by every layer:
// logging, pooled HTTP clients, the response cache and bounded fan-out.
package util

import (
	"fmt"
	"strings"
)

var IsDebug bool

// SetDebugMode sets the debug mode
func SetDebugMode(debug bool) {
	IsDebug = debug
}

// ErrorMessage renders err for an API response. In debug mode the full
// wrapped chain (with stack when available) is kept, otherwise only the
// outermost message.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if IsDebug {
		return fmt.Sprintf("%+v", err)
	}
	msg := err.Error()
	if i := strings.Index(msg, "\n"); i >= 0 {
		msg = msg[:i]
	}
	return msg
}

// Truncate shortens s to at most n bytes, used for upstream body snippets.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
