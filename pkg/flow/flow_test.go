package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OhItsLena/coding-study-test-sub000/pkg/model"
)

func TestSequencePerStage(t *testing.T) {
	require.Equal(t, "home", Sequence(model.StageOne)[0])
	require.Equal(t, "welcome_back", Sequence(model.StageTwo)[0])
	require.Equal(t, "goodbye", Sequence(model.StageOne)[len(Sequence(model.StageOne))-1])
}

func TestGateFreshParticipant(t *testing.T) {
	// nothing visited yet: any entry point is allowed
	for _, requested := range []string{"home", "task", "goodbye", "nonsense"} {
		target, redirect := DetermineCorrectRoute(nil, model.StageOne, requested)
		assert.False(t, redirect, "requested %s", requested)
		assert.Empty(t, target)
	}
}

func TestGateRevisitAndAdvance(t *testing.T) {
	visited := []string{"home", "consent"}

	// revisiting the current step
	_, redirect := DetermineCorrectRoute(visited, model.StageOne, "consent")
	assert.False(t, redirect)

	// advancing exactly one step
	_, redirect = DetermineCorrectRoute(visited, model.StageOne, "background_questionnaire")
	assert.False(t, redirect)
}

func TestGateBackwardNavigation(t *testing.T) {
	visited := []string{"home", "consent", "background_questionnaire"}

	target, redirect := DetermineCorrectRoute(visited, model.StageOne, "home")
	require.True(t, redirect)
	assert.Equal(t, "background_questionnaire", target)
}

func TestGateSkippingAhead(t *testing.T) {
	visited := []string{"home", "consent"}

	target, redirect := DetermineCorrectRoute(visited, model.StageOne, "goodbye")
	require.True(t, redirect)
	assert.Equal(t, "background_questionnaire", target)
}

func TestGateSkippingAheadAtEnd(t *testing.T) {
	visited := Sequence(model.StageOne)

	// already at the last step, an off-sequence skip request stays there
	target, redirect := DetermineCorrectRoute(visited, model.StageOne, "not-a-route")
	require.True(t, redirect)
	assert.Equal(t, "goodbye", target)
}

func TestGateUnknownRoute(t *testing.T) {
	visited := []string{"home"}

	target, redirect := DetermineCorrectRoute(visited, model.StageOne, "debug")
	require.True(t, redirect)
	assert.Equal(t, "home", target)
}

func TestGateSetMembershipNotChronology(t *testing.T) {
	// a late-processed visit for a later route moves the frontier forward
	// even when earlier steps are missing from the log
	visited := []string{"task"}

	target, redirect := DetermineCorrectRoute(visited, model.StageOne, "home")
	require.True(t, redirect)
	assert.Equal(t, "task", target)

	_, redirect = DetermineCorrectRoute(visited, model.StageOne, "ux_questionnaire")
	assert.False(t, redirect)
}

func TestGateStageTwoSequence(t *testing.T) {
	visited := []string{"welcome_back"}

	_, redirect := DetermineCorrectRoute(visited, model.StageTwo, "task")
	assert.False(t, redirect)

	target, redirect := DetermineCorrectRoute(visited, model.StageTwo, "goodbye")
	require.True(t, redirect)
	assert.Equal(t, "task", target)
}

func TestVisitedRoutesFiltersByStage(t *testing.T) {
	history := []model.RouteVisit{
		{Route: "home", Stage: model.StageOne},
		{Route: "task", Stage: model.StageOne},
		{Route: "welcome_back", Stage: model.StageTwo},
	}
	assert.Equal(t, []string{"home", "task"}, VisitedRoutes(history, model.StageOne))
	assert.Equal(t, []string{"welcome_back"}, VisitedRoutes(history, model.StageTwo))
}
