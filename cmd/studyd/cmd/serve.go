package cmd

import (
	"context"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OhItsLena/coding-study-test-sub000/pkg/dlogger"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/editor"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/gitremote"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/gitsync"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/locker"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/metadata"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/model"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/ops"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/queue"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/recorder"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/sessionlog"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/storage"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/storage/localfs"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/storage/sthree"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/vcs"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the study session",
	Long: `Serve resolves the participant from the instance metadata service,
provisions their repositories and serves the study pages until the
process is signalled to stop. Pending background operations are drained
before exit.`,
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() {
	logger, err := dlogger.GetLogger(config.LogLevel, config.Dev)
	if err != nil {
		logFatalln(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	git := vcs.New(vcs.WithLogger(logger))
	locks := locker.NewRegistry()
	creds := gitsync.Credentials{Token: config.Token(), Org: config.Org}

	ws := gitsync.NewWorkspace(config.Workspace, git, locks, creds, gitsync.WorkspaceLogger(logger))
	syncer := gitsync.NewSynchronizer(git, locks, gitsync.SyncLogger(logger))
	coord := gitsync.NewCoordinator(ws, syncer, git, gitsync.CoordinatorLogger(logger))
	prober := gitremote.NewProber(gitremote.WithLogger(logger))

	logs := sessionlog.New(ws, syncer, coord, git, locks,
		sessionlog.WithLogger(logger),
		sessionlog.WithDevelopmentMode(config.Dev),
	)

	q := queue.New(
		ops.New(coord, logs, prober, creds, ops.WithLogger(logger)),
		queue.WithLogger(logger),
	)

	metaOpts := []metadata.Option{metadata.WithLogger(logger)}
	if config.Dev && config.DevParticipant != "" {
		metaOpts = append(metaOpts, metadata.WithDevOverrides(config.DevParticipant, model.Stage(config.DevStage)))
	}
	meta := metadata.New(metaOpts...)

	participantID := meta.ParticipantID(ctx)
	stage := meta.StudyStage(ctx)
	condition := metadata.Condition(participantID)
	logger.Info("participant resolved",
		zap.String("participant", participantID),
		zap.Int("stage", int(stage)),
		zap.String("condition", string(condition)),
	)

	if _, err := logs.EnsureRepository(ctx, participantID); err != nil {
		logger.Warn("logging repository unavailable, telemetry stays in memory", zap.Error(err))
	}
	if err := logs.WriteDescriptor(ctx, model.ParticipantDescriptor{
		ID:        participantID,
		Condition: condition,
		Stage:     stage,
	}); err != nil {
		logger.Warn("could not persist participant descriptor", zap.Error(err))
	}

	if creds.Token != "" {
		probe := model.NewOperation(model.OpTestConnectivity, participantID)
		probe.Purpose = model.PurposeStudy
		q.Enqueue(probe)
	} else {
		logger.Info("no access token configured, running local-only")
	}

	screen := recorder.NewScreenRecorder(config.Recordings, uploadStore(), recorder.RecorderLogger(logger))
	focus := recorder.NewFocusTracker(focusSampler(), logs, recorder.FocusLogger(logger))
	clipboard := recorder.NewClipboardTracker(clipboardSource(), logs, recorder.ClipboardLogger(logger))

	edOpts := []editor.Option{editor.Logger(logger)}
	if config.Editor != "" {
		edOpts = append(edOpts, editor.Binary(config.Editor))
	}

	srv, err := web.NewServer(web.Services{
		Participant: web.Participant{
			ID:        participantID,
			Stage:     stage,
			Condition: condition,
			DevMode:   config.Dev,
		},
		Workspace: ws,
		Sync:      syncer,
		Queue:     q,
		Logs:      logs,
		Focus:     focus,
		Clipboard: clipboard,
		Screen:    screen,
		Editor:    editor.New(edOpts...),
		Logger:    logger,
	})
	if err != nil {
		logFatalln(err)
	}

	httpSrv := &http.Server{
		Addr:         config.Listen,
		Handler:      web.InitRouter(srv),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", config.Listen))
		errC <- httpSrv.ListenAndServe()
	}()

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigC:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errC:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	focus.Stop()
	if err := focus.Flush(ctx, participantID, stage); err != nil {
		logger.Warn("final focus flush failed", zap.Error(err))
	}
	clipboard.Stop()
	if err := clipboard.Flush(ctx, participantID, stage); err != nil {
		logger.Warn("final clipboard flush failed", zap.Error(err))
	}
	_ = screen.Stop(ctx)

	// Drain pending commits and log pushes before the process dies.
	if err := q.Wait(30 * time.Second); err != nil {
		logger.Warn("background queue did not drain in time")
	}
	q.Stop(5 * time.Second)
	logger.Info("bye")
}

// uploadStore selects where finished recordings are shipped: the
// configured S3 bucket, or a staging directory under the workspace when
// no bucket is set.
func uploadStore() storage.Store {
	if config.Bucket != "" {
		return sthree.New(sthree.Bucket(config.Bucket))
	}
	staging := filepath.Join(config.Workspace, "artifacts")
	return localfs.New(afero.NewBasePathFs(afero.NewOsFs(), staging))
}

// clipboardSource reads the clipboard through xclip. A missing binary
// yields error reads which the tracker drops.
func clipboardSource() recorder.ClipboardSource {
	exe := vcs.NewExecExecutor()
	return recorder.ClipboardSourceFunc(func() (string, error) {
		return exe.ExecuteWithOutput(exec.Command("xclip", "-selection", "clipboard", "-o"))
	})
}

// focusSampler reports the focused window. On the study VMs this shells
// out to xdotool; anything going wrong yields an error sample which the
// tracker drops.
func focusSampler() recorder.Sampler {
	exe := vcs.NewExecExecutor()
	return recorder.SamplerFunc(func() (string, string, error) {
		out, err := exe.ExecuteWithOutput(exec.Command("xdotool", "getactivewindow", "getwindowname"))
		if err != nil {
			return "", "", err
		}
		title := strings.TrimSpace(out)
		app := title
		if i := strings.LastIndex(title, " - "); i >= 0 {
			app = title[i+3:]
		}
		return app, title, nil
	})
}
