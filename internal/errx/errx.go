// Package errx wraps package sentinel errors with their causes so callers
// can match on the sentinel with errors.Is and still see the cause.
package errx

import "fmt"

// Wrap returns "sentinel: cause". A nil cause yields the bare sentinel.
func Wrap(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// With appends a formatted suffix to sentinel. The format is used verbatim
// after the sentinel text, so it usually starts with ": " or " ".
// A %w verb in format wraps that argument as well.
func With(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w"+format, append([]any{sentinel}, args...)...)
}
