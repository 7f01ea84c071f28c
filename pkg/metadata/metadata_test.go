package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OhItsLena/coding-study-test-sub000/pkg/model"
)

func tagServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.Header.Get("Metadata"))
		_, _ = w.Write([]byte(body))
	}))
}

func TestParseTags(t *testing.T) {
	tags := parseTags("participant_id:p-42;study_stage:2;note:a:b")
	assert.Equal(t, "p-42", tags["participant_id"])
	assert.Equal(t, "2", tags["study_stage"])
	// only the first colon splits key from value
	assert.Equal(t, "a:b", tags["note"])

	assert.Empty(t, parseTags(""))
	assert.Empty(t, parseTags(";;novalue;"))
}

func TestParticipantIDFromTags(t *testing.T) {
	srv := tagServer(t, "participant_id:p-42;study_stage:2")
	defer srv.Close()

	p := New(WithEndpoint(srv.URL))
	assert.Equal(t, "p-42", p.ParticipantID(context.Background()))
	assert.Equal(t, model.StageTwo, p.StudyStage(context.Background()))
}

func TestDefaultsWhenServiceUnreachable(t *testing.T) {
	p := New(WithEndpoint("http://127.0.0.1:1/metadata"))

	assert.Equal(t, DefaultParticipantID, p.ParticipantID(context.Background()))
	assert.Equal(t, model.StageOne, p.StudyStage(context.Background()))
}

func TestDefaultsWhenTagsMissingOrInvalid(t *testing.T) {
	srv := tagServer(t, "study_stage:seven")
	defer srv.Close()

	p := New(WithEndpoint(srv.URL))
	assert.Equal(t, DefaultParticipantID, p.ParticipantID(context.Background()))
	assert.Equal(t, model.StageOne, p.StudyStage(context.Background()))
}

func TestDevOverridesBypassService(t *testing.T) {
	p := New(
		WithEndpoint("http://127.0.0.1:1/metadata"),
		WithDevOverrides("dev-user", model.StageTwo),
	)
	assert.Equal(t, "dev-user", p.ParticipantID(context.Background()))
	assert.Equal(t, model.StageTwo, p.StudyStage(context.Background()))
}

func TestConditionIsDeterministic(t *testing.T) {
	first := Condition("p-42")
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Condition("p-42"))
	}
}

func TestConditionDefaultIdentity(t *testing.T) {
	assert.Equal(t, model.ConditionVibe, Condition(DefaultParticipantID))
}

func TestConditionSplitsByDigestParity(t *testing.T) {
	// md5("a") = 0cc175b9c0f1b6a831c399e269772661, odd last byte
	assert.Equal(t, model.ConditionAssisted, Condition("a"))
	// md5("c") = 4a8a08f09d37b73795649038408b5f33, odd last byte
	assert.Equal(t, model.ConditionAssisted, Condition("c"))
	// md5("b") = 92eb5ffee6ae2fec3ad71c777531578f, odd last byte
	assert.Equal(t, model.ConditionAssisted, Condition("b"))
	// md5("d") = 8277e0910d750195b448797616e091ad, odd last byte
	assert.Equal(t, model.ConditionAssisted, Condition("d"))
	// md5("f") = 8fa14cdd754f91cc6554c9e71929cce7, odd last byte
	assert.Equal(t, model.ConditionAssisted, Condition("f"))
	// md5("e") = e1671797c52e15f763380b45e841ec32, even last byte
	assert.Equal(t, model.ConditionVibe, Condition("e"))
}
