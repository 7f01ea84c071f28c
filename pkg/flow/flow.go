// Package flow enforces the forward-only page sequence of the study.
//
// The gate is a pure function over the participant's recorded route
// visits: it never performs I/O and never mutates history.
package flow

import (
	"github.com/OhItsLena/coding-study-test-sub000/pkg/model"
)

var stageOneSequence = []string{
	"home",
	"consent",
	"background_questionnaire",
	"tutorial",
	"task",
	"ux_questionnaire",
	"goodbye",
}

var stageTwoSequence = []string{
	"welcome_back",
	"task",
	"ux_questionnaire",
	"goodbye",
}

// Sequence returns the canonical ordered route names for a stage.
// The returned slice must not be modified.
func Sequence(stage model.Stage) []string {
	if stage == model.StageTwo {
		return stageTwoSequence
	}
	return stageOneSequence
}

// DetermineCorrectRoute decides whether the requested route is allowed
// given the routes already visited in this stage. It returns the route to
// redirect to and true, or "" and false when no redirect is needed.
//
// "Visited" is set membership, not a chronological replay: a duplicated or
// late-processed log write can move the frontier forward early. This is an
// accepted approximation.
func DetermineCorrectRoute(visited []string, stage model.Stage, requested string) (string, bool) {
	seq := Sequence(stage)

	seen := make(map[string]struct{}, len(visited))
	for _, r := range visited {
		seen[r] = struct{}{}
	}

	furthest := -1
	for i, route := range seq {
		if _, ok := seen[route]; ok {
			furthest = i
		}
	}

	// Nothing visited yet: let the natural flow begin wherever it likes.
	if furthest == -1 {
		return "", false
	}

	requestedIdx := -1
	for i, route := range seq {
		if route == requested {
			requestedIdx = i
			break
		}
	}

	// Routes outside the stage sequence (debug pages and the like) bounce
	// back to the current step.
	if requestedIdx == -1 {
		return seq[furthest], true
	}

	switch {
	case requestedIdx == furthest, requestedIdx == furthest+1:
		// Revisiting the current step or advancing exactly one step.
		return "", false
	case requestedIdx < furthest:
		// Backward navigation.
		return seq[furthest], true
	default:
		// Skipping ahead: send them to the next step they have earned.
		if furthest+1 < len(seq) {
			return seq[furthest+1], true
		}
		return seq[furthest], true
	}
}

// VisitedRoutes projects a route-visit history onto the route names for
// one stage, ready for DetermineCorrectRoute.
func VisitedRoutes(history []model.RouteVisit, stage model.Stage) []string {
	routes := make([]string, 0, len(history))
	for _, v := range history {
		if v.Stage == stage {
			routes = append(routes, v.Route)
		}
	}
	return routes
}
