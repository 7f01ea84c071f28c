package gitsync

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/OhItsLena/coding-study-test-sub000/pkg/gitsync/status"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/locker"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/model"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/vcs"
)

// Synchronizer guarantees a repository is checked out on a specific
// branch, creating it deterministically from a given source when it does
// not exist yet. A branch that exists locally is never re-derived:
// EnsureBranch is idempotent and safe to call on every page load.
type Synchronizer struct {
	git   *vcs.Client
	locks *locker.Registry
	l     *zap.Logger
}

// SynchronizerOption customizes a Synchronizer
type SynchronizerOption func(*Synchronizer)

// SyncLogger sets the synchronizer logger
func SyncLogger(l *zap.Logger) SynchronizerOption {
	return func(s *Synchronizer) {
		s.l = l
	}
}

// NewSynchronizer builds a Synchronizer
func NewSynchronizer(git *vcs.Client, locks *locker.Registry, opts ...SynchronizerOption) *Synchronizer {
	s := &Synchronizer{
		git:   git,
		locks: locks,
		l:     zap.NewNop(),
	}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

// EnsureBranch makes sure repoPath is checked out on branch.
//
// When the branch does not exist locally it is created from source (a
// local branch name or an origin/ qualified ref). With an empty source
// the remote branch of the same name is tracked. A missing source is a
// hard failure: no empty branch is ever created.
//
// The whole operation runs under the repository lock.
func (s *Synchronizer) EnsureBranch(ctx context.Context, repoPath, branch, source string) error {
	lock := s.locks.Get(repoPath)
	lock.Lock()
	defer lock.Unlock()
	return s.ensureBranchLocked(ctx, repoPath, branch, source)
}

func (s *Synchronizer) ensureBranchLocked(ctx context.Context, repoPath, branch, source string) error {
	current, err := s.git.CurrentBranch(ctx, repoPath)
	if err != nil {
		// Diagnostics only; a detached HEAD or odd state does not stop the
		// protocol.
		s.l.Warn("could not determine current branch", zap.String("path", repoPath), zap.Error(err))
	}

	if err := s.git.Fetch(ctx, repoPath); err != nil {
		// Transient network failure: proceed with stale refs. The next call
		// re-attempts the full protocol.
		s.l.Warn("fetch failed, proceeding with stale refs", zap.String("path", repoPath), zap.Error(err))
	}

	hasLocal, err := s.git.HasLocalBranch(ctx, repoPath, branch)
	if err != nil {
		return err
	}
	if hasLocal {
		if current == branch {
			s.l.Debug("already on branch", zap.String("branch", branch))
			return nil
		}
		s.l.Info("switching to existing branch", zap.String("branch", branch), zap.String("from", current))
		return s.git.Checkout(ctx, repoPath, branch)
	}

	if source != "" {
		ok, err := s.sourceExists(ctx, repoPath, source)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(status.ErrSourceBranchMissing, "cannot create %q from %q", branch, source)
		}
		s.l.Info("creating branch", zap.String("branch", branch), zap.String("source", source))
		return s.git.CheckoutNew(ctx, repoPath, branch, source)
	}

	hasRemote, err := s.git.HasRemoteBranch(ctx, repoPath, branch)
	if err != nil {
		return err
	}
	if !hasRemote {
		return errors.Wrapf(status.ErrBranchNotFound, "branch %q", branch)
	}
	s.l.Info("tracking remote branch", zap.String("branch", branch))
	return s.git.CheckoutNew(ctx, repoPath, branch, "origin/"+branch)
}

func (s *Synchronizer) sourceExists(ctx context.Context, repoPath, source string) (bool, error) {
	if name, isRemote := strings.CutPrefix(source, "origin/"); isRemote {
		return s.git.HasRemoteBranch(ctx, repoPath, name)
	}
	return s.git.HasLocalBranch(ctx, repoPath, source)
}

// EnsureStageBranch checks out the working branch for a study stage.
//
// Both stage branches are created from the canonical remote stage-1
// baseline, so stage-2 always starts from graded content, never from
// main and never from an in-progress stage-2 of another instance.
func (s *Synchronizer) EnsureStageBranch(ctx context.Context, repoPath string, stage model.Stage) error {
	lock := s.locks.Get(repoPath)
	lock.Lock()
	defer lock.Unlock()
	return s.ensureStageBranchLocked(ctx, repoPath, stage)
}

func (s *Synchronizer) ensureStageBranchLocked(ctx context.Context, repoPath string, stage model.Stage) error {
	if !stage.Valid() {
		return errors.Wrapf(status.ErrInvalidStage, "stage %d", int(stage))
	}
	return s.ensureBranchLocked(ctx, repoPath, stage.Branch(), stage.SourceBranch())
}

// EnsureTutorialBranch checks out the tutorial branch, tracking the
// remote tutorial branch when no local one exists.
func (s *Synchronizer) EnsureTutorialBranch(ctx context.Context, repoPath string) error {
	return s.EnsureBranch(ctx, repoPath, model.TutorialBranch, "")
}
