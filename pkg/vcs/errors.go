package vcs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTimedOut indicates a git subprocess was killed on its deadline.
	ErrTimedOut = errors.New("git operation timed out")

	// ErrNotARepository indicates the directory is not a git working tree.
	ErrNotARepository = errors.New("not a git repository")
)

// GitError carries the failed git invocation with its captured stderr.
type GitError struct {
	Op     string
	Args   []string
	Stderr string
	Err    error
}

func (e *GitError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Op, strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

// Unwrap yields the underlying execution error
func (e *GitError) Unwrap() error {
	return e.Err
}
