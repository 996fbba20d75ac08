// Package errx provides sentinel-preserving error wrapping.
//
// Packages declare sentinel errors (e.g. ErrBuild) and wrap underlying
// failures with [Wrap] or [Wrapf]. Both keep the sentinel and the cause
// visible to [errors.Is] and [errors.As], so callers can match on the
// category without losing the original error chain.
package errx

import "fmt"

// Wraps err under the given sentinel.
//
// The result matches both the sentinel and err with [errors.Is].
func Wrap(sentinel, err error) error {
	return fmt.Errorf("%w: %w", sentinel, err)
}

// Wraps a formatted message under the given sentinel.
//
// The format string may itself contain %w verbs; wrapped arguments stay
// visible to [errors.Is] alongside the sentinel.
func Wrapf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...)
}
