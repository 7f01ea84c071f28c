// Package editor opens the participant's code editor on a repository.
package editor

import (
	"context"
	"os/exec"

	"go.uber.org/zap"

	"github.com/OhItsLena/coding-study-test-sub000/pkg/vcs"
)

// Launcher opens a directory in the configured editor.
type Launcher struct {
	bin  string
	exec vcs.CommandExecutor
	l    *zap.Logger
}

// Option customizes a Launcher
type Option func(*Launcher)

// Binary sets the editor binary
func Binary(bin string) Option {
	return func(e *Launcher) {
		e.bin = bin
	}
}

// Executor overrides subprocess execution, used by tests
func Executor(exec vcs.CommandExecutor) Option {
	return func(e *Launcher) {
		e.exec = exec
	}
}

// Logger sets the launcher logger
func Logger(l *zap.Logger) Option {
	return func(e *Launcher) {
		e.l = l
	}
}

// New builds a Launcher, defaulting to VS Code.
func New(opts ...Option) *Launcher {
	e := &Launcher{
		bin:  "code",
		exec: vcs.NewExecExecutor(),
		l:    zap.NewNop(),
	}
	for _, apply := range opts {
		apply(e)
	}
	return e
}

// Open launches the editor on dir. A missing or failing editor is logged
// and reported, callers treat it as non-fatal: the participant can still
// open the repository by hand.
func (e *Launcher) Open(ctx context.Context, dir string) error {
	cmd := exec.CommandContext(ctx, e.bin, dir)
	if _, err := e.exec.ExecuteWithOutput(cmd); err != nil {
		e.l.Warn("could not launch editor", zap.String("dir", dir), zap.Error(err))
		return err
	}
	e.l.Info("opened editor", zap.String("dir", dir))
	return nil
}
