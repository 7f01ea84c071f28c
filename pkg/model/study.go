// Package model describes the domain entities of the study tool:
// participants, study stages, repositories, session log records and
// queued operations. It has no dependencies on the packages that act
// on these entities.
package model

import (
	"fmt"
	"time"
)

// Stage identifies which half of the study a participant is in.
type Stage int

const (
	// StageOne is the first study session: full onboarding, tutorial and task.
	StageOne Stage = 1

	// StageTwo is the returning session: the participant continues from the
	// graded stage-1 baseline.
	StageTwo Stage = 2
)

// Valid reports whether the stage is one of the two known stages.
func (s Stage) Valid() bool {
	return s == StageOne || s == StageTwo
}

// Branch yields the working branch name for this stage.
func (s Stage) Branch() string {
	return fmt.Sprintf("stage-%d", int(s))
}

// SourceBranch yields the remote branch a stage branch is created from.
//
// Both stages fork from the canonical remote stage-1 baseline: stage-2
// deliberately starts from the graded content, never from whatever an
// in-progress stage-1 edit or a prior stage-2 run left behind.
func (s Stage) SourceBranch() string {
	return "origin/stage-1"
}

func (s Stage) String() string {
	return fmt.Sprintf("stage %d", int(s))
}

// Purpose distinguishes the repositories kept per participant.
type Purpose string

const (
	// PurposeStudy is the repository holding the participant's task work.
	PurposeStudy Purpose = "study"

	// PurposeTutorial is the repository used during the tutorial.
	PurposeTutorial Purpose = "tutorial"

	// PurposeLogs is the repository receiving session telemetry.
	PurposeLogs Purpose = "logs"
)

// Condition is the coding condition a participant is assigned to.
type Condition string

const (
	// ConditionVibe lets the participant code without assistance features.
	ConditionVibe Condition = "vibe"

	// ConditionAssisted enables the AI-assisted tooling.
	ConditionAssisted Condition = "ai-assisted"
)

// TutorialBranch is the branch checked out in the tutorial repository.
const TutorialBranch = "tutorial"

// LoggingBranch is the branch session telemetry is committed on.
const LoggingBranch = "logging"

// RepoName yields the remote repository name for a participant and purpose.
func RepoName(participantID string, purpose Purpose) string {
	switch purpose {
	case PurposeTutorial:
		return fmt.Sprintf("tutorial-%s", participantID)
	case PurposeLogs:
		return fmt.Sprintf("study-%s-logs", participantID)
	default:
		return fmt.Sprintf("study-%s", participantID)
	}
}

// RouteVisit is a single session log entry. Entries are append-only and
// deduplicated on (Route, Stage) per participant.
type RouteVisit struct {
	ParticipantID   string                 `json:"participant_id" yaml:"participant_id"`
	Route           string                 `json:"route" yaml:"route"`
	Stage           Stage                  `json:"study_stage" yaml:"study_stage"`
	Timestamp       time.Time              `json:"timestamp" yaml:"timestamp"`
	DevelopmentMode bool                   `json:"development_mode" yaml:"development_mode"`
	SessionID       string                 `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	SessionData     map[string]interface{} `json:"session_data,omitempty" yaml:"session_data,omitempty"`
}

// StageTransition records a participant moving from one stage to the next.
// Transitions are deduplicated on (FromStage, ToStage).
type StageTransition struct {
	ParticipantID string    `json:"participant_id" yaml:"participant_id"`
	FromStage     Stage     `json:"from_stage" yaml:"from_stage"`
	ToStage       Stage     `json:"to_stage" yaml:"to_stage"`
	Timestamp     time.Time `json:"timestamp" yaml:"timestamp"`
}

// FocusEvent is one sample of the participant's active window.
type FocusEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	AppName     string    `json:"app_name"`
	WindowTitle string    `json:"window_title"`
	Platform    string    `json:"platform"`
	Initial     bool      `json:"initial_focus,omitempty"`
}

// ClipboardEvent is one recorded clipboard change.
type ClipboardEvent struct {
	Timestamp     time.Time `json:"timestamp"`
	Content       string    `json:"content"`
	ContentLength int       `json:"content_length"`
}

// ParticipantDescriptor is persisted once per participant in the logging
// repository, so an analysis run can recover the assignment without the
// original metadata service.
type ParticipantDescriptor struct {
	ID        string    `yaml:"id" json:"id"`
	Condition Condition `yaml:"condition" json:"condition"`
	Stage     Stage     `yaml:"stage" json:"stage"`
	SessionID string    `yaml:"session_id" json:"session_id"`
	StartedAt time.Time `yaml:"started_at" json:"started_at"`
}
