// Package web serves the participant-facing study pages and the
// operational endpoints. Every page load passes the flow gate: requests
// for pages out of protocol order redirect to the furthest page the
// participant has legitimately reached.
package web

import (
	"errors"
	"html/template"

	"go.uber.org/zap"

	"github.com/OhItsLena/coding-study-test-sub000/pkg/editor"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/gitsync"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/model"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/queue"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/recorder"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/sessionlog"
)

// Participant carries the identity resolved at startup. The server is
// single-tenant: one participant per study VM.
type Participant struct {
	ID        string
	Stage     model.Stage
	Condition model.Condition
	DevMode   bool
}

// Services bundles the study machinery the handlers act on.
type Services struct {
	Participant Participant

	Workspace *gitsync.Workspace
	Sync      *gitsync.Synchronizer
	Queue     *queue.Queue
	Logs      *sessionlog.Store
	Focus     *recorder.FocusTracker
	Clipboard *recorder.ClipboardTracker
	Screen    *recorder.ScreenRecorder
	Editor    *editor.Launcher
	Logger    *zap.Logger
}

type appTemplates map[string]*template.Template

func (tmpl appTemplates) lookup(name string) (*template.Template, error) {
	t, has := tmpl[name]
	if !has {
		return nil, errors.New("can't find template '" + name + "'")
	}
	return t, nil
}

// Server holds the handler state.
type Server struct {
	svc  Services
	tmpl appTemplates
	l    *zap.Logger
}

// NewServer builds a Server over the study services.
func NewServer(svc Services) (*Server, error) {
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	l := svc.Logger
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{svc: svc, tmpl: tmpl, l: l}, nil
}
