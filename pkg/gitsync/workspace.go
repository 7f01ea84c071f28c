// Package gitsync keeps each participant's repositories on the correct
// branch for their current study stage and mirrors their work to the
// remote. It is the only package that mutates repository working trees;
// every mutating operation serializes through the per-repository lock.
package gitsync

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/OhItsLena/coding-study-test-sub000/pkg/gitremote"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/gitsync/status"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/locker"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/model"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/vcs"
)

// Credentials carry the remote organization and its optional access
// token. An empty token is not an error: the study degrades to
// local-only persistence.
type Credentials struct {
	Token string
	Org   string
}

// Workspace locates and provisions the per-participant repositories
// under a single root directory.
type Workspace struct {
	root  string
	git   *vcs.Client
	locks *locker.Registry
	creds Credentials
	l     *zap.Logger
}

// WorkspaceOption customizes a Workspace
type WorkspaceOption func(*Workspace)

// WorkspaceLogger sets the workspace logger
func WorkspaceLogger(l *zap.Logger) WorkspaceOption {
	return func(w *Workspace) {
		w.l = l
	}
}

// NewWorkspace builds a workspace rooted at root.
func NewWorkspace(root string, git *vcs.Client, locks *locker.Registry, creds Credentials, opts ...WorkspaceOption) *Workspace {
	w := &Workspace{
		root:  root,
		git:   git,
		locks: locks,
		creds: creds,
		l:     zap.NewNop(),
	}
	for _, apply := range opts {
		apply(w)
	}
	return w
}

// RepoPath returns the repository directory for a participant and purpose.
func (w *Workspace) RepoPath(participantID string, purpose model.Purpose) string {
	return filepath.Join(w.root, model.RepoName(participantID, purpose))
}

// Root returns the workspace root directory.
func (w *Workspace) Root() string {
	return w.root
}

// CloneIfMissing makes sure the participant's repository exists under the
// workspace root, cloning it when absent. A directory that is not a git
// repository is removed and recloned. Safe to call on every page load.
func (w *Workspace) CloneIfMissing(ctx context.Context, participantID string, purpose model.Purpose) error {
	repoPath := w.RepoPath(participantID, purpose)
	lock := w.locks.Get(repoPath)
	lock.Lock()
	defer lock.Unlock()

	if fi, err := os.Stat(repoPath); err == nil && fi.IsDir() {
		if w.git.IsRepository(ctx, repoPath) {
			w.l.Debug("repository already present", zap.String("path", repoPath))
			return nil
		}
		w.l.Warn("directory exists but is not a repository, recloning", zap.String("path", repoPath))
		if err := os.RemoveAll(repoPath); err != nil {
			return errors.Wrap(err, "removing stale directory")
		}
	}

	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return errors.Wrap(err, "creating workspace directory")
	}

	url := gitremote.RepoURL(model.RepoName(participantID, purpose), w.creds.Token, w.creds.Org)
	if err := w.git.Clone(ctx, url, repoPath); err != nil {
		w.l.Warn("clone failed",
			zap.String("participant", participantID),
			zap.String("purpose", string(purpose)),
			zap.Error(err))
		return err
	}
	w.l.Info("cloned repository",
		zap.String("participant", participantID),
		zap.String("purpose", string(purpose)))
	return nil
}

// EnsureConfig sets the commit identity when unset: the participant ID as
// user name and a synthetic study address as email.
func (w *Workspace) EnsureConfig(ctx context.Context, repoPath, participantID string) error {
	lock := w.locks.Get(repoPath)
	lock.Lock()
	defer lock.Unlock()
	return w.ensureConfigLocked(ctx, repoPath, participantID)
}

func (w *Workspace) ensureConfigLocked(ctx context.Context, repoPath, participantID string) error {
	name, err := w.git.ConfigGet(ctx, repoPath, "user.name")
	if err != nil {
		return err
	}
	if name == "" {
		if err := w.git.ConfigSet(ctx, repoPath, "user.name", participantID); err != nil {
			return err
		}
	}
	email, err := w.git.ConfigGet(ctx, repoPath, "user.email")
	if err != nil {
		return err
	}
	if email == "" {
		if err := w.git.ConfigSet(ctx, repoPath, "user.email", participantID+"@study.local"); err != nil {
			return err
		}
	}
	return nil
}

// checkRepository verifies the precondition shared by commit and branch
// operations: the directory exists and is a working tree.
func (w *Workspace) checkRepository(ctx context.Context, repoPath string) error {
	fi, err := os.Stat(repoPath)
	if err != nil || !fi.IsDir() {
		return status.ErrRepositoryMissing
	}
	if _, err := os.Stat(filepath.Join(repoPath, ".git")); err != nil {
		return status.ErrNotARepository
	}
	return nil
}
