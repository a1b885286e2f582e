package internal

import (
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

// Fatal will Echo the message and exit with code 1.
// Deferred functions don't run, so callers zero secrets before calling it.
func Fatal(msg string, args ...any) {
	Echo(msg, args...)
	exit(1)
}

// Echo will emit the given message to stderr without any logging formatting.
func Echo(msg string, args ...any) {
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	_, _ = fmt.Fprintf(stderr, msg, args...)
}
