// Package sessionlog persists study telemetry in a dedicated logging
// repository: which routes a participant visited, when they moved
// between stages, and window focus samples. Log files live in the
// working tree of the logging repository so the regular commit and
// backup machinery mirrors them to the remote.
package sessionlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v2"

	"github.com/OhItsLena/coding-study-test-sub000/pkg/gitsync"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/gitsync/status"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/locker"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/model"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/vcs"
	"github.com/pkg/errors"
)

const (
	sessionLogFile  = "session_log.json"
	transitionsFile = "stage_transitions.json"
	descriptorFile  = "participant.yaml"
)

// Store reads and writes the telemetry files of a participant's logging
// repository. All mutations serialize through the repository lock shared
// with the git layer.
type Store struct {
	fs    afero.Fs
	ws    *gitsync.Workspace
	sync  *gitsync.Synchronizer
	coord *gitsync.Coordinator
	git   *vcs.Client
	locks *locker.Registry
	l     *zap.Logger

	sessionID string
	now       func() time.Time
	dev       bool
}

// Option customizes a Store
type Option func(*Store)

// WithFs overrides the filesystem, used by tests
func WithFs(fs afero.Fs) Option {
	return func(s *Store) {
		s.fs = fs
	}
}

// WithLogger sets the store logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		s.l = l
	}
}

// WithClock overrides the wall clock
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithDevelopmentMode marks every written record as produced in
// development mode
func WithDevelopmentMode(dev bool) Option {
	return func(s *Store) {
		s.dev = dev
	}
}

// New builds a session log store. A fresh session identifier is minted
// per process so log records from different runs stay distinguishable.
func New(ws *gitsync.Workspace, sync *gitsync.Synchronizer, coord *gitsync.Coordinator, git *vcs.Client, locks *locker.Registry, opts ...Option) *Store {
	s := &Store{
		fs:        afero.NewOsFs(),
		ws:        ws,
		sync:      sync,
		coord:     coord,
		git:       git,
		locks:     locks,
		l:         zap.NewNop(),
		sessionID: uuid.NewString(),
		now:       time.Now,
	}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

// SessionID returns the identifier minted for this process.
func (s *Store) SessionID() string {
	return s.sessionID
}

// repoPath locates the participant's logging repository.
func (s *Store) repoPath(participantID string) string {
	return s.ws.RepoPath(participantID, model.PurposeLogs)
}

// EnsureRepository provisions the logging repository and checks out the
// logging branch. When the remote cannot be cloned a local repository is
// initialized instead, so telemetry is never lost to a network outage.
func (s *Store) EnsureRepository(ctx context.Context, participantID string) (string, error) {
	repoPath := s.repoPath(participantID)

	if err := s.ws.CloneIfMissing(ctx, participantID, model.PurposeLogs); err != nil {
		s.l.Warn("cloning logging repository failed, initializing locally",
			zap.String("participant", participantID), zap.Error(err))
		if err := s.initLocal(ctx, repoPath); err != nil {
			return "", err
		}
	}

	if err := s.ws.EnsureConfig(ctx, repoPath, participantID); err != nil {
		s.l.Warn("could not set commit identity on logging repository", zap.Error(err))
	}

	err := s.sync.EnsureBranch(ctx, repoPath, model.LoggingBranch, "")
	switch {
	case err == nil:
	case errors.Is(err, status.ErrBranchNotFound):
		// No logging branch anywhere yet: fork one off HEAD. A freshly
		// initialized repository is already on its unborn logging branch.
		lock := s.locks.Get(repoPath)
		lock.Lock()
		var cerr error
		if cur, _ := s.git.CurrentBranch(ctx, repoPath); cur != model.LoggingBranch {
			cerr = s.git.CheckoutNew(ctx, repoPath, model.LoggingBranch, "")
		}
		lock.Unlock()
		if cerr != nil {
			return "", cerr
		}
	default:
		return "", err
	}
	return repoPath, nil
}

func (s *Store) initLocal(ctx context.Context, repoPath string) error {
	lock := s.locks.Get(repoPath)
	lock.Lock()
	defer lock.Unlock()

	if s.git.IsRepository(ctx, repoPath) {
		return nil
	}
	if err := s.fs.MkdirAll(filepath.Dir(repoPath), 0o755); err != nil {
		return errors.Wrap(err, "creating workspace directory")
	}
	return s.git.Init(ctx, repoPath, model.LoggingBranch)
}

// LogRouteVisit appends a visit record to the session log. Visits are
// deduplicated on (route, stage): logging an already recorded route is a
// success and reports added=false.
func (s *Store) LogRouteVisit(ctx context.Context, visit model.RouteVisit) (bool, error) {
	repoPath := s.repoPath(visit.ParticipantID)
	lock := s.locks.Get(repoPath)
	lock.Lock()
	defer lock.Unlock()

	var visits []model.RouteVisit
	if err := s.readJSON(filepath.Join(repoPath, sessionLogFile), &visits); err != nil {
		return false, err
	}
	for _, v := range visits {
		if v.Route == visit.Route && v.Stage == visit.Stage {
			s.l.Debug("route already logged",
				zap.String("route", visit.Route),
				zap.Int("stage", int(visit.Stage)))
			return false, nil
		}
	}

	if visit.Timestamp.IsZero() {
		visit.Timestamp = s.now()
	}
	if visit.SessionID == "" {
		visit.SessionID = s.sessionID
	}
	visit.DevelopmentMode = visit.DevelopmentMode || s.dev

	visits = append(visits, visit)
	if err := s.writeJSON(filepath.Join(repoPath, sessionLogFile), visits); err != nil {
		return false, err
	}
	s.l.Info("logged route visit",
		zap.String("participant", visit.ParticipantID),
		zap.String("route", visit.Route),
		zap.Int("stage", int(visit.Stage)))
	return true, nil
}

// History returns every visit recorded for the participant, oldest first.
func (s *Store) History(ctx context.Context, participantID string) ([]model.RouteVisit, error) {
	repoPath := s.repoPath(participantID)
	lock := s.locks.Get(repoPath)
	lock.Lock()
	defer lock.Unlock()

	var visits []model.RouteVisit
	if err := s.readJSON(filepath.Join(repoPath, sessionLogFile), &visits); err != nil {
		return nil, err
	}
	return visits, nil
}

// MarkStageTransition records a stage transition once. Repeating an
// already recorded (from, to) pair is a success and reports added=false.
func (s *Store) MarkStageTransition(ctx context.Context, t model.StageTransition) (bool, error) {
	repoPath := s.repoPath(t.ParticipantID)
	lock := s.locks.Get(repoPath)
	lock.Lock()
	defer lock.Unlock()

	var transitions []model.StageTransition
	if err := s.readJSON(filepath.Join(repoPath, transitionsFile), &transitions); err != nil {
		return false, err
	}
	for _, existing := range transitions {
		if existing.FromStage == t.FromStage && existing.ToStage == t.ToStage {
			return false, nil
		}
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = s.now()
	}
	transitions = append(transitions, t)
	if err := s.writeJSON(filepath.Join(repoPath, transitionsFile), transitions); err != nil {
		return false, err
	}
	s.l.Info("marked stage transition",
		zap.String("participant", t.ParticipantID),
		zap.Int("from", int(t.FromStage)),
		zap.Int("to", int(t.ToStage)))
	return true, nil
}

// HasTransitioned reports whether the (from, to) transition was recorded.
func (s *Store) HasTransitioned(ctx context.Context, participantID string, from, to model.Stage) (bool, error) {
	repoPath := s.repoPath(participantID)
	lock := s.locks.Get(repoPath)
	lock.Lock()
	defer lock.Unlock()

	var transitions []model.StageTransition
	if err := s.readJSON(filepath.Join(repoPath, transitionsFile), &transitions); err != nil {
		return false, err
	}
	for _, t := range transitions {
		if t.FromStage == from && t.ToStage == to {
			return true, nil
		}
	}
	return false, nil
}

// SaveFocusEvents appends window focus samples to the per-stage focus
// file.
func (s *Store) SaveFocusEvents(ctx context.Context, participantID string, stage model.Stage, events []model.FocusEvent) error {
	if len(events) == 0 {
		return nil
	}
	repoPath := s.repoPath(participantID)
	lock := s.locks.Get(repoPath)
	lock.Lock()
	defer lock.Unlock()

	path := filepath.Join(repoPath, fmt.Sprintf("window_focus_stage%d.json", int(stage)))
	var existing []model.FocusEvent
	if err := s.readJSON(path, &existing); err != nil {
		return err
	}
	existing = append(existing, events...)
	return s.writeJSON(path, existing)
}

// SaveClipboardEvents appends clipboard changes to the per-stage
// clipboard file.
func (s *Store) SaveClipboardEvents(ctx context.Context, participantID string, stage model.Stage, events []model.ClipboardEvent) error {
	if len(events) == 0 {
		return nil
	}
	repoPath := s.repoPath(participantID)
	lock := s.locks.Get(repoPath)
	lock.Lock()
	defer lock.Unlock()

	path := filepath.Join(repoPath, fmt.Sprintf("clipboard_log_stage%d.json", int(stage)))
	var existing []model.ClipboardEvent
	if err := s.readJSON(path, &existing); err != nil {
		return err
	}
	existing = append(existing, events...)
	return s.writeJSON(path, existing)
}

// WriteDescriptor persists the participant's assignment exactly once.
func (s *Store) WriteDescriptor(ctx context.Context, d model.ParticipantDescriptor) error {
	repoPath := s.repoPath(d.ID)
	lock := s.locks.Get(repoPath)
	lock.Lock()
	defer lock.Unlock()

	path := filepath.Join(repoPath, descriptorFile)
	if _, err := s.fs.Stat(path); err == nil {
		return nil
	}
	if d.StartedAt.IsZero() {
		d.StartedAt = s.now()
	}
	if d.SessionID == "" {
		d.SessionID = s.sessionID
	}
	data, err := yaml.Marshal(d)
	if err != nil {
		return errors.Wrap(err, "encoding participant descriptor")
	}
	return afero.WriteFile(s.fs, path, data, 0o644)
}

// PushLogs commits pending telemetry and mirrors the logging repository.
// Failures are reported but never fatal to the caller's flow.
func (s *Store) PushLogs(ctx context.Context, participantID string) error {
	_, err := s.coord.CommitAndBackupAll(ctx, participantID, 0, "Update session logs", model.PurposeLogs)
	if err != nil {
		s.l.Warn("pushing session logs failed",
			zap.String("participant", participantID), zap.Error(err))
	}
	return err
}

func (s *Store) readJSON(path string, v interface{}) error {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "reading %s", filepath.Base(path))
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "decoding %s", filepath.Base(path))
	}
	return nil
}

func (s *Store) writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encoding %s", filepath.Base(path))
	}
	return afero.WriteFile(s.fs, path, data, 0o644)
}
