package gitsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OhItsLena/coding-study-test-sub000/pkg/gitsync/status"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/model"
)

func fixedClock() func() time.Time {
	ts := time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)
	return func() time.Time { return ts }
}

func newCoordinatorRig(t *testing.T, creds Credentials) (*testRig, *Coordinator) {
	t.Helper()
	rig := newTestRig(t, creds)
	coord := NewCoordinator(rig.ws, rig.sync, rig.client(), CoordinatorClock(fixedClock()))
	materializeRepo(t, rig.ws.RepoPath("p1", model.PurposeStudy))
	return rig, coord
}

func TestCommitMessageCarriesStagePrefix(t *testing.T) {
	rig, coord := newCoordinatorRig(t, Credentials{Token: "tok", Org: "lab"})
	rig.git.current = "stage-1"
	rig.git.local = []string{"stage-1"}
	rig.git.remote = []string{"stage-1"}
	rig.git.dirty = true

	res, err := coord.CommitAndBackupAll(context.Background(), "p1", model.StageOne, "Save task progress", model.PurposeStudy)
	require.NoError(t, err)
	require.True(t, res.OK())

	commits := rig.git.commitLog()
	require.Len(t, commits, 1)
	assert.Equal(t, "[Stage 1] Save task progress - 2025-01-02 15:04:05", commits[0])
}

func TestCommitMessageWithoutStagePrefix(t *testing.T) {
	rig := newTestRig(t, Credentials{Token: "tok", Org: "lab"})
	coord := NewCoordinator(rig.ws, rig.sync, rig.client(), CoordinatorClock(fixedClock()))
	materializeRepo(t, rig.ws.RepoPath("p1", model.PurposeTutorial))
	rig.git.current = "tutorial"
	rig.git.local = []string{"tutorial"}
	rig.git.dirty = true

	// stage zero: tutorial work carries no stage marker
	res, err := coord.CommitAndBackupAll(context.Background(), "p1", 0, "Tutorial checkpoint", model.PurposeTutorial)
	require.NoError(t, err)
	require.True(t, res.OK())

	commits := rig.git.commitLog()
	require.Len(t, commits, 1)
	assert.Equal(t, "Tutorial checkpoint - 2025-01-02 15:04:05", commits[0])
}

func TestCleanTreeStillBacksUp(t *testing.T) {
	rig, coord := newCoordinatorRig(t, Credentials{Token: "tok", Org: "lab"})
	rig.git.current = "stage-1"
	rig.git.local = []string{"stage-1"}
	rig.git.remote = []string{"stage-1"}

	res, err := coord.CommitAndBackupAll(context.Background(), "p1", model.StageOne, "noop", model.PurposeStudy)
	require.NoError(t, err)
	require.True(t, res.OK())

	assert.Empty(t, rig.git.commitLog())
	// earlier unpushed commits still get their chance
	assert.Equal(t, []string{"stage-1"}, rig.git.pushLog())
}

func TestBackupSkippedWithoutToken(t *testing.T) {
	rig, coord := newCoordinatorRig(t, Credentials{Org: "lab"})
	rig.git.current = "stage-1"
	rig.git.local = []string{"stage-1"}
	rig.git.remote = []string{"stage-1"}
	rig.git.dirty = true

	res, err := coord.CommitAndBackupAll(context.Background(), "p1", model.StageOne, "local only", model.PurposeStudy)
	require.NoError(t, err)

	// work is committed locally but nothing leaves the machine
	assert.Len(t, rig.git.commitLog(), 1)
	assert.Empty(t, rig.git.pushLog())
	assert.True(t, res.Skipped)
	assert.True(t, res.OK())
}

func TestBackupPushesEveryLocalBranch(t *testing.T) {
	rig, coord := newCoordinatorRig(t, Credentials{Token: "tok", Org: "lab"})
	rig.git.current = "stage-1"
	rig.git.local = []string{"main", "stage-1"}
	rig.git.remote = []string{"stage-1"}

	res, err := coord.BackupAll(context.Background(), "p1", model.PurposeStudy)
	require.NoError(t, err)
	require.True(t, res.OK())

	assert.ElementsMatch(t, []string{"main", "stage-1"}, rig.git.pushLog())
	require.Len(t, res.Branches, 2)
	for _, b := range res.Branches {
		assert.NoError(t, b.Err)
		assert.Equal(t, 1, b.Attempts)
	}
}

func TestBackupRetriesWithRefetch(t *testing.T) {
	rig, coord := newCoordinatorRig(t, Credentials{Token: "tok", Org: "lab"})
	rig.git.current = "stage-1"
	rig.git.local = []string{"stage-1"}
	rig.git.remote = []string{"stage-1"}
	rig.git.pushFailures["stage-1"] = 1

	res, err := coord.BackupAll(context.Background(), "p1", model.PurposeStudy)
	require.NoError(t, err)
	require.True(t, res.OK())

	require.Len(t, res.Branches, 1)
	assert.Equal(t, 2, res.Branches[0].Attempts)
	assert.Equal(t, []string{"stage-1"}, rig.git.pushLog())
	// refs were refreshed between the two attempts
	assert.GreaterOrEqual(t, rig.git.fetches, 1)
}

func TestBackupPartialFailureStillSucceeds(t *testing.T) {
	rig, coord := newCoordinatorRig(t, Credentials{Token: "tok", Org: "lab"})
	rig.git.current = "stage-1"
	rig.git.local = []string{"main", "stage-1"}
	rig.git.remote = []string{"stage-1"}
	rig.git.pushFailures["main"] = 10

	res, err := coord.BackupAll(context.Background(), "p1", model.PurposeStudy)
	require.Error(t, err)

	// stage-1 made it out, so the pass achieved its goal
	assert.True(t, res.OK())
	assert.Equal(t, []string{"stage-1"}, rig.git.pushLog())

	var mainOutcome *BranchOutcome
	for i := range res.Branches {
		if res.Branches[i].Branch == "main" {
			mainOutcome = &res.Branches[i]
		}
	}
	require.NotNil(t, mainOutcome)
	assert.Error(t, mainOutcome.Err)
	assert.Equal(t, 2, mainOutcome.Attempts)
}

func TestBackupTotalFailure(t *testing.T) {
	rig, coord := newCoordinatorRig(t, Credentials{Token: "tok", Org: "lab"})
	rig.git.current = "stage-1"
	rig.git.local = []string{"stage-1"}
	rig.git.remote = []string{"stage-1"}
	rig.git.pushFailures["stage-1"] = 10

	res, err := coord.BackupAll(context.Background(), "p1", model.PurposeStudy)
	require.Error(t, err)
	assert.False(t, res.OK())
}

func TestCommitAndBackupMissingRepository(t *testing.T) {
	rig := newTestRig(t, Credentials{Token: "tok", Org: "lab"})
	coord := NewCoordinator(rig.ws, rig.sync, rig.client(), CoordinatorClock(fixedClock()))

	_, err := coord.CommitAndBackupAll(context.Background(), "ghost", model.StageOne, "msg", model.PurposeStudy)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrRepositoryMissing))
}

func TestCommitAndBackupEnsuresStageBranchFirst(t *testing.T) {
	rig, coord := newCoordinatorRig(t, Credentials{Token: "tok", Org: "lab"})
	rig.git.current = "main"
	rig.git.local = []string{"main"}
	rig.git.remote = []string{"stage-1"}
	rig.git.dirty = true

	res, err := coord.CommitAndBackupAll(context.Background(), "p1", model.StageTwo, "work", model.PurposeStudy)
	require.NoError(t, err)
	require.True(t, res.OK())

	// committed on the freshly created stage branch
	assert.Equal(t, []string{"-b stage-2 origin/stage-1"}, rig.git.checkoutLog())
	assert.Contains(t, rig.git.pushLog(), "stage-2")
}
