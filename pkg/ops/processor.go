// Package ops executes the deferred operations taken off the background
// queue: committing and mirroring participant work, appending session
// log records and probing the remote hosting service.
package ops

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/OhItsLena/coding-study-test-sub000/pkg/gitremote"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/gitsync"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/model"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/sessionlog"
)

// Processor dispatches queued operations to the study services. It
// satisfies the queue's Processor interface.
type Processor struct {
	coord  *gitsync.Coordinator
	logs   *sessionlog.Store
	prober *gitremote.Prober
	creds  gitsync.Credentials
	l      *zap.Logger
}

// Option customizes a Processor
type Option func(*Processor)

// WithLogger sets the processor logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) {
		p.l = l
	}
}

// New builds a Processor over the study services.
func New(coord *gitsync.Coordinator, logs *sessionlog.Store, prober *gitremote.Prober, creds gitsync.Credentials, opts ...Option) *Processor {
	p := &Processor{
		coord:  coord,
		logs:   logs,
		prober: prober,
		creds:  creds,
		l:      zap.NewNop(),
	}
	for _, apply := range opts {
		apply(p)
	}
	return p
}

// Process executes one operation. A returned error requeues the
// operation until its retry budget is exhausted.
func (p *Processor) Process(ctx context.Context, op model.Operation) error {
	switch op.Kind {
	case model.OpCommitAndBackup:
		return p.commitAndBackup(ctx, op)
	case model.OpLogRouteVisit:
		return p.logRouteVisit(ctx, op)
	case model.OpMarkTransition:
		return p.markTransition(ctx, op)
	case model.OpTestConnectivity:
		return p.testConnectivity(ctx, op)
	default:
		// Unknown kinds are dropped, retrying cannot help.
		p.l.Error("unknown operation kind", zap.String("kind", string(op.Kind)))
		return nil
	}
}

func (p *Processor) commitAndBackup(ctx context.Context, op model.Operation) error {
	purpose := op.Purpose
	if purpose == "" {
		purpose = model.PurposeStudy
	}
	res, err := p.coord.CommitAndBackupAll(ctx, op.ParticipantID, op.Stage, op.Message, purpose)
	if err != nil && !res.OK() {
		return err
	}
	if err != nil {
		// Partial success: some branches reached the remote. Do not
		// requeue, the next backup pass retries the stragglers anyway.
		p.l.Warn("backup partially failed",
			zap.String("participant", op.ParticipantID), zap.Error(err))
	}
	return nil
}

func (p *Processor) logRouteVisit(ctx context.Context, op model.Operation) error {
	visit := model.RouteVisit{
		ParticipantID:   op.ParticipantID,
		Route:           op.Route,
		Stage:           op.Stage,
		Timestamp:       op.CreatedAt,
		DevelopmentMode: op.Development,
		SessionData:     op.SessionData,
	}
	added, err := p.logs.LogRouteVisit(ctx, visit)
	if err != nil {
		return err
	}
	if !added {
		return nil
	}
	// Mirror telemetry opportunistically. Local persistence already
	// succeeded, a push failure must not burn the operation's retries.
	if err := p.logs.PushLogs(ctx, op.ParticipantID); err != nil {
		p.l.Debug("session log push deferred", zap.Error(err))
	}
	return nil
}

func (p *Processor) markTransition(ctx context.Context, op model.Operation) error {
	added, err := p.logs.MarkStageTransition(ctx, model.StageTransition{
		ParticipantID: op.ParticipantID,
		FromStage:     op.FromStage,
		ToStage:       op.ToStage,
		Timestamp:     op.CreatedAt,
	})
	if err != nil {
		return err
	}
	if added {
		if err := p.logs.PushLogs(ctx, op.ParticipantID); err != nil {
			p.l.Debug("session log push deferred", zap.Error(err))
		}
	}
	return nil
}

func (p *Processor) testConnectivity(ctx context.Context, op model.Operation) error {
	purpose := op.Purpose
	if purpose == "" {
		purpose = model.PurposeStudy
	}
	repoName := model.RepoName(op.ParticipantID, purpose)
	if err := p.prober.CheckRepository(ctx, p.creds.Org, p.creds.Token, repoName); err != nil {
		return fmt.Errorf("probing %s: %w", repoName, err)
	}
	p.l.Info("remote repository reachable", zap.String("repo", repoName))
	return nil
}
