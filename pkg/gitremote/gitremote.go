// Package gitremote builds authenticated remote URLs and probes the
// hosting service for repository access.
package gitremote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

var (
	// ErrRepoNotFound indicates the repository does not exist or the token
	// cannot see it.
	ErrRepoNotFound = errors.New("repository not found or not accessible")

	// ErrUnauthorized indicates the access token was rejected.
	ErrUnauthorized = errors.New("authentication failed")

	// ErrUnavailable indicates the hosting API could not be reached or
	// answered with an unexpected status.
	ErrUnavailable = errors.New("hosting service unavailable")
)

// RepoURL constructs the HTTPS remote URL for a named repository.
//
// With a token the embedded-credential form is used; without one the plain
// public form. The exact shapes are relied upon by pre-provisioned remotes
// and must not change.
func RepoURL(repoName, token, org string) string {
	if token != "" {
		return fmt.Sprintf("https://%s@github.com/%s/%s.git", token, org, repoName)
	}
	return fmt.Sprintf("https://github.com/%s/%s.git", org, repoName)
}

// Prober checks repository reachability through the hosting API.
type Prober struct {
	client  *http.Client
	apiBase string
	l       *zap.Logger
}

// ProberOption customizes a Prober
type ProberOption func(*Prober)

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(c *http.Client) ProberOption {
	return func(p *Prober) {
		p.client = c
	}
}

// WithAPIBase points the prober at a different API endpoint (tests)
func WithAPIBase(base string) ProberOption {
	return func(p *Prober) {
		p.apiBase = base
	}
}

// WithLogger sets the prober logger
func WithLogger(l *zap.Logger) ProberOption {
	return func(p *Prober) {
		p.l = l
	}
}

// NewProber builds a Prober
func NewProber(opts ...ProberOption) *Prober {
	p := &Prober{
		client:  &http.Client{Timeout: 10 * time.Second},
		apiBase: "https://api.github.com",
		l:       zap.NewNop(),
	}
	for _, apply := range opts {
		apply(p)
	}
	return p
}

// CheckRepository verifies that the named repository is reachable,
// authenticating with token when one is present. Network-level failures
// are retried once before giving up.
func (p *Prober) CheckRepository(ctx context.Context, org, token, repoName string) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s/repos/%s/%s", p.apiBase, org, repoName), nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		if token != "" {
			req.Header.Set("Authorization", "token "+token)
		}
		resp, err := p.client.Do(req)
		if err != nil {
			p.l.Warn("hosting API unreachable", zap.Error(err))
			return ErrUnavailable
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			return nil
		case http.StatusNotFound:
			return backoff.Permanent(ErrRepoNotFound)
		case http.StatusUnauthorized:
			return backoff.Permanent(ErrUnauthorized)
		default:
			p.l.Warn("unexpected status from hosting API",
				zap.Int("status", resp.StatusCode), zap.String("repo", repoName))
			return ErrUnavailable
		}
	}
	return backoff.Retry(op, backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), 1))
}
