package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/OhItsLena/coding-study-test-sub000/pkg/flow"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/model"
)

// pageData is handed to every page template.
type pageData struct {
	Title     string
	Next      string
	Branch    string
	Condition model.Condition
}

// InitRouter wires the study pages and the operational endpoints.
func InitRouter(srv *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	registerQueueDepth(func() float64 {
		return float64(srv.svc.Queue.Stats().Depth)
	})

	r.Get("/", srv.handleRoot())
	for _, route := range flow.Sequence(srv.svc.Participant.Stage) {
		r.Get("/"+route, srv.handlePage(route))
	}

	r.Get("/healthz", srv.handleHealth())
	r.Get("/debug/queue", srv.handleQueueStats())
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// handleRoot sends the participant to the entry page of their stage.
func (s *Server) handleRoot() http.HandlerFunc {
	first := flow.Sequence(s.svc.Participant.Stage)[0]
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/"+first, http.StatusFound)
	}
}

// handlePage serves one study page behind the flow gate.
func (s *Server) handlePage(route string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := s.svc.Participant

		history, err := s.svc.Logs.History(r.Context(), p.ID)
		if err != nil {
			s.l.Error("could not load session history", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		visited := flow.VisitedRoutes(history, p.Stage)
		target, redirect := flow.DetermineCorrectRoute(visited, p.Stage, route)
		if redirect {
			gateRedirects.WithLabelValues(route).Inc()
			s.l.Info("flow gate redirect",
				zap.String("requested", route),
				zap.String("target", target))
			http.Redirect(w, r, "/"+target, http.StatusFound)
			return
		}

		data := s.enterRoute(r, route)
		pageViews.WithLabelValues(route).Inc()

		tmpl, err := s.tmpl.lookup(route)
		if err != nil {
			s.l.Error("missing page template", zap.String("route", route))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
			s.l.Error("rendering page failed", zap.String("route", route), zap.Error(err))
		}
	}
}

// enterRoute performs the side effects of reaching a page and returns
// the template data. Side effects are ordered so the page always
// renders: repository work that fails is logged and retried by later
// visits or by the queue.
func (s *Server) enterRoute(r *http.Request, route string) pageData {
	ctx := r.Context()
	p := s.svc.Participant
	data := pageData{
		Title:     route,
		Next:      s.nextRoute(route),
		Condition: p.Condition,
	}

	op := model.NewOperation(model.OpLogRouteVisit, p.ID)
	op.Route = route
	op.Stage = p.Stage
	op.Development = p.DevMode
	s.svc.Queue.Enqueue(op)

	switch route {
	case "tutorial":
		if err := s.svc.Workspace.CloneIfMissing(ctx, p.ID, model.PurposeTutorial); err == nil {
			repoPath := s.svc.Workspace.RepoPath(p.ID, model.PurposeTutorial)
			if err := s.svc.Sync.EnsureTutorialBranch(ctx, repoPath); err != nil {
				s.l.Warn("tutorial branch setup failed", zap.Error(err))
			}
			_ = s.svc.Editor.Open(ctx, repoPath)
		}

	case "task":
		data.Branch = p.Stage.Branch()
		if err := s.svc.Workspace.CloneIfMissing(ctx, p.ID, model.PurposeStudy); err == nil {
			repoPath := s.svc.Workspace.RepoPath(p.ID, model.PurposeStudy)
			if err := s.svc.Sync.EnsureStageBranch(ctx, repoPath, p.Stage); err != nil {
				s.l.Error("stage branch setup failed", zap.Error(err))
			}
			_ = s.svc.Editor.Open(ctx, repoPath)
		}
		if s.svc.Screen != nil {
			_ = s.svc.Screen.Start(ctx)
		}
		if s.svc.Focus != nil {
			s.svc.Focus.Start()
		}
		if s.svc.Clipboard != nil {
			s.svc.Clipboard.Start()
		}

	case "ux_questionnaire":
		backup := model.NewOperation(model.OpCommitAndBackup, p.ID)
		backup.Stage = p.Stage
		backup.Purpose = model.PurposeStudy
		backup.Message = "Save task progress"
		s.svc.Queue.Enqueue(backup)

		if s.svc.Screen != nil {
			_ = s.svc.Screen.Stop(ctx)
		}
		if s.svc.Focus != nil {
			s.svc.Focus.Stop()
			if err := s.svc.Focus.Flush(ctx, p.ID, p.Stage); err != nil {
				s.l.Warn("flushing focus events failed", zap.Error(err))
			}
		}
		if s.svc.Clipboard != nil {
			s.svc.Clipboard.Stop()
			if err := s.svc.Clipboard.Flush(ctx, p.ID, p.Stage); err != nil {
				s.l.Warn("flushing clipboard events failed", zap.Error(err))
			}
		}

	case "goodbye":
		final := model.NewOperation(model.OpCommitAndBackup, p.ID)
		final.Stage = p.Stage
		final.Purpose = model.PurposeStudy
		final.Message = "Final session backup"
		s.svc.Queue.Enqueue(final)

		if p.Stage == model.StageOne {
			transition := model.NewOperation(model.OpMarkTransition, p.ID)
			transition.FromStage = model.StageOne
			transition.ToStage = model.StageTwo
			s.svc.Queue.Enqueue(transition)
		}
		if s.svc.Screen != nil {
			_ = s.svc.Screen.Stop(ctx)
			if err := s.svc.Screen.Upload(ctx, p.ID); err != nil {
				s.l.Warn("uploading recordings failed", zap.Error(err))
			}
		}
	}
	return data
}

// nextRoute yields the page following route in this stage's sequence,
// empty on the last page.
func (s *Server) nextRoute(route string) string {
	seq := flow.Sequence(s.svc.Participant.Stage)
	for i, r := range seq {
		if r == route && i+1 < len(seq) {
			return seq[i+1]
		}
	}
	return ""
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// handleQueueStats exposes the background queue counters and the
// operations that exhausted their retries.
func (s *Server) handleQueueStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := struct {
			Stats  interface{}       `json:"stats"`
			Failed []model.Operation `json:"failed_operations"`
		}{
			Stats:  s.svc.Queue.Stats(),
			Failed: s.svc.Queue.FailedOperations(),
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.l.Error("encoding queue stats failed", zap.Error(err))
		}
	}
}
