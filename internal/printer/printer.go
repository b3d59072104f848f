// Package printer formats democrite CLI output: coloured status lines, board and record
// statuses, and errors with suggestions.
package printer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/fatih/color"
)

func init() {
	// Users can disable colours with NO_COLOR.
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// Success prints a success message in green with a checkmark prefix
func Success(format string, a ...any) {
	green.Print(withPrefix("✓ ", fmt.Sprintf(format, a...)))
}

// Info prints an informational message in the default color
func Info(format string, a ...any) {
	fmt.Printf(format, a...)
}

// Warning prints a warning message in yellow
func Warning(format string, a ...any) {
	yellow.Print(withPrefix("⚠️  ", fmt.Sprintf(format, a...)))
}

// Step prints a step of a multi-step operation
func Step(format string, a ...any) {
	cyan.Print(withPrefix("→ ", fmt.Sprintf(format, a...)))
}

func withPrefix(prefix, msg string) string {
	if strings.HasPrefix(msg, strings.TrimSpace(prefix)) {
		return msg
	}
	return prefix + msg
}

// LifeStatus renders a board life status: Running green, Sealed yellow, Done faint.
func LifeStatus(s blackboard.LifeStatus) string {
	switch s {
	case blackboard.LifeStatusRunning:
		return green.Sprint(s)
	case blackboard.LifeStatusSealed:
		return yellow.Sprint(s)
	case blackboard.LifeStatusDone:
		return faint.Sprint(s)
	default:
		return string(s)
	}
}

// RecordStatus renders a record status mask. Error wins over the other bits.
func RecordStatus(s blackboard.RecordStatus) string {
	switch {
	case s.Has(blackboard.RecordStatusError):
		return red.Sprint(s)
	case s.Has(blackboard.RecordStatusDecommissioned):
		return faint.Sprint(s)
	case s.Has(blackboard.RecordStatusPreparation):
		return yellow.Sprint(s)
	case s.Has(blackboard.RecordStatusReady):
		return green.Sprint(s)
	default:
		return s.String()
	}
}

// Error prints a formatted error to stderr and returns an error carrying only the title,
// for cobra commands that silence their own error output.
func Error(title string, explanation string, suggestions []string) error {
	return ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with key/value details printed between the explanation and
// the suggestions, sorted by key.
func ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	writeError(os.Stderr, title, explanation, context, suggestions)
	return &PrintedError{Title: title}
}

// PrintedError is returned by Error once the message has reached the terminal.
type PrintedError struct {
	Title string
}

func (e *PrintedError) Error() string {
	return e.Title
}

// IsPrinted reports whether err was already shown to the user by Error.
func IsPrinted(err error) bool {
	var printed *PrintedError
	return errors.As(err, &printed)
}

func writeError(w io.Writer, title, explanation string, context map[string]string, suggestions []string) {
	red.Fprintf(w, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(w, "%s\n", explanation)
	}

	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for k := range context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(w)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %s\n", k, context[k])
		}
	}

	switch len(suggestions) {
	case 0:
	case 1:
		fmt.Fprintf(w, "\n%s\n", suggestions[0])
	default:
		fmt.Fprintf(w, "\nEither:\n")
		for i, s := range suggestions {
			fmt.Fprintf(w, "  %d. %s\n", i+1, s)
		}
	}
}

// Println prints a plain message
func Println(a ...any) {
	fmt.Println(a...)
}

// Printf prints a plain formatted message
func Printf(format string, a ...any) {
	fmt.Printf(format, a...)
}
