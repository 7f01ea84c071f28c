package vcs

import (
	"bytes"
	"os/exec"
)

// CommandExecutor abstracts subprocess execution so tests can script git
// without a working tree.
type CommandExecutor interface {
	// ExecuteWithOutput runs a command and returns its combined stdout.
	// Stderr is captured and surfaced through the returned error.
	ExecuteWithOutput(cmd *exec.Cmd) (string, error)
}

// ExecExecutor is the default CommandExecutor backed by os/exec.
type ExecExecutor struct{}

// NewExecExecutor creates a new ExecExecutor
func NewExecExecutor() *ExecExecutor {
	return &ExecExecutor{}
}

// ExecuteWithOutput implements CommandExecutor
func (e *ExecExecutor) ExecuteWithOutput(cmd *exec.Cmd) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var op string
		var args []string
		if len(cmd.Args) > 0 {
			op = cmd.Args[0]
			args = cmd.Args[1:]
		}
		return stdout.String(), &GitError{
			Op:     op,
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return stdout.String(), nil
}
