package ops

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OhItsLena/coding-study-test-sub000/pkg/gitremote"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/gitsync"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/locker"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/model"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/sessionlog"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/vcs"
)

type nopExec struct{}

func (nopExec) ExecuteWithOutput(*exec.Cmd) (string, error) { return "", nil }

func newProcessor(t *testing.T, apiBase string) (*Processor, *sessionlog.Store, string) {
	t.Helper()
	git := vcs.New(vcs.WithExecutor(nopExec{}))
	locks := locker.NewRegistry()
	creds := gitsync.Credentials{Token: "tok", Org: "lab"}
	root := t.TempDir()
	ws := gitsync.NewWorkspace(root, git, locks, creds)
	syncer := gitsync.NewSynchronizer(git, locks)
	coord := gitsync.NewCoordinator(ws, syncer, git)
	logs := sessionlog.New(ws, syncer, coord, git, locks, sessionlog.WithFs(afero.NewMemMapFs()))

	prober := gitremote.NewProber(gitremote.WithAPIBase(apiBase))
	return New(coord, logs, prober, creds), logs, root
}

func TestProcessLogRouteVisit(t *testing.T) {
	p, logs, _ := newProcessor(t, "http://127.0.0.1:1")

	op := model.NewOperation(model.OpLogRouteVisit, "p1")
	op.Route = "home"
	op.Stage = model.StageOne
	require.NoError(t, p.Process(context.Background(), op))

	history, err := logs.History(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "home", history[0].Route)
}

func TestProcessMarkTransition(t *testing.T) {
	p, logs, _ := newProcessor(t, "http://127.0.0.1:1")

	op := model.NewOperation(model.OpMarkTransition, "p1")
	op.FromStage = model.StageOne
	op.ToStage = model.StageTwo
	require.NoError(t, p.Process(context.Background(), op))

	done, err := logs.HasTransitioned(context.Background(), "p1", model.StageOne, model.StageTwo)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestProcessCommitAndBackupMissingRepoFails(t *testing.T) {
	p, _, _ := newProcessor(t, "http://127.0.0.1:1")

	op := model.NewOperation(model.OpCommitAndBackup, "ghost")
	op.Stage = model.StageOne
	require.Error(t, p.Process(context.Background(), op))
}

func TestProcessCommitAndBackupCleanTree(t *testing.T) {
	p, _, root := newProcessor(t, "http://127.0.0.1:1")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "study-p1", ".git"), 0o755))

	op := model.NewOperation(model.OpCommitAndBackup, "p1")
	op.Stage = 0 // no stage branch handling
	require.NoError(t, p.Process(context.Background(), op))
}

func TestProcessConnectivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/lab/study-p1", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p, _, _ := newProcessor(t, srv.URL)
	op := model.NewOperation(model.OpTestConnectivity, "p1")
	require.NoError(t, p.Process(context.Background(), op))
}

func TestProcessUnknownKindDropped(t *testing.T) {
	p, _, _ := newProcessor(t, "http://127.0.0.1:1")

	op := model.NewOperation("mystery", "p1")
	require.NoError(t, p.Process(context.Background(), op))
}
