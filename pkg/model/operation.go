package model

import "time"

// OpKind tags a queued background operation.
type OpKind string

const (
	// OpCommitAndBackup commits the participant's working tree and pushes
	// every local branch.
	OpCommitAndBackup OpKind = "commit-and-backup"

	// OpLogRouteVisit appends a route visit to the session log.
	OpLogRouteVisit OpKind = "log-route-visit"

	// OpTestConnectivity probes the remote hosting service.
	OpTestConnectivity OpKind = "test-connectivity"

	// OpMarkTransition records a stage transition.
	OpMarkTransition OpKind = "mark-transition"
)

// MaxOperationRetries bounds how often a failed operation is requeued
// before it is recorded as permanently failed.
const MaxOperationRetries = 3

// Operation is a unit of deferred work processed by the background queue.
// Only the payload fields relevant to the Kind are set.
type Operation struct {
	Kind          OpKind    `json:"kind"`
	ParticipantID string    `json:"participant_id"`
	CreatedAt     time.Time `json:"created_at"`
	Retries       int       `json:"retries"`

	// payload
	Stage       Stage                  `json:"study_stage,omitempty"`
	Purpose     Purpose                `json:"purpose,omitempty"`
	Route       string                 `json:"route,omitempty"`
	Message     string                 `json:"message,omitempty"`
	FromStage   Stage                  `json:"from_stage,omitempty"`
	ToStage     Stage                  `json:"to_stage,omitempty"`
	Development bool                   `json:"development_mode,omitempty"`
	SessionData map[string]interface{} `json:"session_data,omitempty"`
}

// NewOperation stamps an operation with its creation time.
func NewOperation(kind OpKind, participantID string) Operation {
	return Operation{
		Kind:          kind,
		ParticipantID: participantID,
		CreatedAt:     time.Now(),
	}
}
