package gitsync

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/OhItsLena/coding-study-test-sub000/pkg/gitremote"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/model"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/vcs"
)

const (
	defaultPushAttempts = 2
	commitTimeLayout    = "2006-01-02 15:04:05"
)

// BranchOutcome records the result of pushing one local branch.
type BranchOutcome struct {
	Branch   string
	Attempts int
	Err      error
}

// BackupResult aggregates a full backup pass over a repository.
type BackupResult struct {
	// Skipped is true when no token is configured and the repository
	// stays local-only.
	Skipped  bool
	Branches []BranchOutcome
}

// OK reports whether the backup achieved its goal: either it was
// deliberately skipped, there was nothing to push, or at least one
// branch reached the remote.
func (r BackupResult) OK() bool {
	if r.Skipped || len(r.Branches) == 0 {
		return true
	}
	for _, b := range r.Branches {
		if b.Err == nil {
			return true
		}
	}
	return false
}

// Err combines the per-branch push failures, nil when everything was
// pushed or the backup was skipped.
func (r BackupResult) Err() error {
	var err error
	for _, b := range r.Branches {
		if b.Err != nil {
			err = multierr.Append(err, fmt.Errorf("branch %s: %w", b.Branch, b.Err))
		}
	}
	return err
}

// Coordinator commits pending work and mirrors every local branch to the
// remote. Commit and backup run as one unit under the repository lock so
// a backup never races a half-staged commit.
type Coordinator struct {
	ws           *Workspace
	sync         *Synchronizer
	git          *vcs.Client
	l            *zap.Logger
	now          func() time.Time
	pushAttempts int
}

// CoordinatorOption customizes a Coordinator
type CoordinatorOption func(*Coordinator)

// CoordinatorLogger sets the coordinator logger
func CoordinatorLogger(l *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.l = l
	}
}

// CoordinatorClock overrides the wall clock used in commit messages
func CoordinatorClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.now = now
	}
}

// CoordinatorPushAttempts sets the number of push attempts per branch
func CoordinatorPushAttempts(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.pushAttempts = n
		}
	}
}

// NewCoordinator builds a Coordinator on top of a workspace and a
// branch synchronizer sharing the same lock registry.
func NewCoordinator(ws *Workspace, sync *Synchronizer, git *vcs.Client, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		ws:           ws,
		sync:         sync,
		git:          git,
		l:            zap.NewNop(),
		now:          time.Now,
		pushAttempts: defaultPushAttempts,
	}
	for _, apply := range opts {
		apply(c)
	}
	return c
}

// CommitAndBackupAll commits any pending changes on the participant's
// stage branch and pushes every local branch to the remote.
//
// With stage zero no stage branch is ensured and the commit message
// carries no stage prefix (the tutorial flow). A clean working tree
// commits nothing but still backs up, so earlier commits that failed to
// push get another chance. The returned result is non-zero even on
// error so partial outcomes stay observable.
func (c *Coordinator) CommitAndBackupAll(ctx context.Context, participantID string, stage model.Stage, message string, purpose model.Purpose) (BackupResult, error) {
	repoPath := c.ws.RepoPath(participantID, purpose)
	lock := c.ws.locks.Get(repoPath)
	lock.Lock()
	defer lock.Unlock()

	if err := c.ws.checkRepository(ctx, repoPath); err != nil {
		return BackupResult{}, err
	}

	if err := c.ws.ensureConfigLocked(ctx, repoPath, participantID); err != nil {
		// Identity problems surface on commit. Keep going.
		c.l.Warn("could not ensure commit identity", zap.String("path", repoPath), zap.Error(err))
	}

	if stage.Valid() {
		if err := c.sync.ensureStageBranchLocked(ctx, repoPath, stage); err != nil {
			return BackupResult{}, err
		}
	}

	dirty, err := c.git.HasChanges(ctx, repoPath)
	if err != nil {
		return BackupResult{}, err
	}
	if dirty {
		if err := c.git.AddAll(ctx, repoPath); err != nil {
			return BackupResult{}, err
		}
		if err := c.git.Commit(ctx, repoPath, c.formatMessage(stage, message)); err != nil {
			return BackupResult{}, err
		}
		c.l.Info("committed changes",
			zap.String("participant", participantID),
			zap.Int("stage", int(stage)))
	} else {
		c.l.Debug("working tree clean, nothing to commit", zap.String("path", repoPath))
	}

	res := c.backupAllLocked(ctx, participantID, repoPath, purpose)
	return res, res.Err()
}

// BackupAll pushes every local branch without committing first.
func (c *Coordinator) BackupAll(ctx context.Context, participantID string, purpose model.Purpose) (BackupResult, error) {
	repoPath := c.ws.RepoPath(participantID, purpose)
	lock := c.ws.locks.Get(repoPath)
	lock.Lock()
	defer lock.Unlock()

	if err := c.ws.checkRepository(ctx, repoPath); err != nil {
		return BackupResult{}, err
	}
	res := c.backupAllLocked(ctx, participantID, repoPath, purpose)
	return res, res.Err()
}

func (c *Coordinator) formatMessage(stage model.Stage, message string) string {
	ts := c.now().Format(commitTimeLayout)
	if stage.Valid() {
		return fmt.Sprintf("[Stage %d] %s - %s", int(stage), message, ts)
	}
	return fmt.Sprintf("%s - %s", message, ts)
}

func (c *Coordinator) backupAllLocked(ctx context.Context, participantID, repoPath string, purpose model.Purpose) BackupResult {
	if c.ws.creds.Token == "" {
		c.l.Info("no access token configured, keeping work local",
			zap.String("participant", participantID))
		return BackupResult{Skipped: true}
	}

	url := gitremote.RepoURL(model.RepoName(participantID, purpose), c.ws.creds.Token, c.ws.creds.Org)
	if err := c.git.SetRemoteURL(ctx, repoPath, url); err != nil {
		return BackupResult{Branches: []BranchOutcome{
			{Branch: "origin", Attempts: 0, Err: err},
		}}
	}

	branches, err := c.git.LocalBranches(ctx, repoPath)
	if err != nil {
		return BackupResult{Branches: []BranchOutcome{
			{Branch: "*", Attempts: 0, Err: err},
		}}
	}

	res := BackupResult{Branches: make([]BranchOutcome, 0, len(branches))}
	for _, branch := range branches {
		res.Branches = append(res.Branches, c.pushWithRetry(ctx, repoPath, branch))
	}

	pushed := 0
	for _, b := range res.Branches {
		if b.Err == nil {
			pushed++
		}
	}
	c.l.Info("backup pass finished",
		zap.String("participant", participantID),
		zap.Int("pushed", pushed),
		zap.Int("branches", len(branches)))
	return res
}

// pushWithRetry pushes one branch, refetching remote refs between
// attempts so a push rejected on a stale remote ref can succeed on the
// retry. Divergence that survives the refetch is a permanent failure
// for this pass: the participant's history is never rewritten.
func (c *Coordinator) pushWithRetry(ctx context.Context, repoPath, branch string) BranchOutcome {
	out := BranchOutcome{Branch: branch}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(500*time.Millisecond), uint64(c.pushAttempts-1)),
		ctx,
	)
	err := backoff.RetryNotify(
		func() error {
			out.Attempts++
			return c.git.Push(ctx, repoPath, branch)
		},
		policy,
		func(err error, _ time.Duration) {
			c.l.Warn("push failed, refetching before retry",
				zap.String("branch", branch),
				zap.Error(err))
			if ferr := c.git.Fetch(ctx, repoPath); ferr != nil {
				c.l.Warn("refetch failed", zap.String("path", repoPath), zap.Error(ferr))
			}
		},
	)
	out.Err = err
	if err == nil {
		c.l.Debug("pushed branch", zap.String("branch", branch), zap.Int("attempts", out.Attempts))
	}
	return out
}
