package gitremote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepoURLShapes(t *testing.T) {
	assert.Equal(t,
		"https://tok123@github.com/lab/study-p1.git",
		RepoURL("study-p1", "tok123", "lab"))
	assert.Equal(t,
		"https://github.com/lab/study-p1.git",
		RepoURL("study-p1", "", "lab"))
}

func TestCheckRepositoryOK(t *testing.T) {
	var gotAuth string
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber(WithAPIBase(srv.URL))
	err := p.CheckRepository(context.Background(), "lab", "tok123", "study-p1")
	require.NoError(t, err)
	assert.Equal(t, "token tok123", gotAuth)
	assert.Equal(t, "/repos/lab/study-p1", gotPath)
}

func TestCheckRepositoryAnonymous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber(WithAPIBase(srv.URL))
	require.NoError(t, p.CheckRepository(context.Background(), "lab", "", "study-p1"))
}

func TestCheckRepositoryNotFoundIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewProber(WithAPIBase(srv.URL))
	err := p.CheckRepository(context.Background(), "lab", "tok", "ghost")
	require.ErrorIs(t, err, ErrRepoNotFound)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestCheckRepositoryUnauthorizedIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewProber(WithAPIBase(srv.URL))
	err := p.CheckRepository(context.Background(), "lab", "bad", "study-p1")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestCheckRepositoryRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber(WithAPIBase(srv.URL))
	require.NoError(t, p.CheckRepository(context.Background(), "lab", "tok", "study-p1"))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestCheckRepositoryGivesUpAfterRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewProber(WithAPIBase(srv.URL))
	err := p.CheckRepository(context.Background(), "lab", "tok", "study-p1")
	require.ErrorIs(t, err, ErrUnavailable)
}
