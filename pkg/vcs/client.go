// Package vcs wraps the git command line tool with bounded timeouts and
// captured output. All operations are synchronous; callers own locking.
package vcs

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Per-call timeouts, scaled to operation weight: config reads are cheap,
// clone and push cross the network.
const (
	configTimeout = 5 * time.Second
	localTimeout  = 10 * time.Second
	fetchTimeout  = 30 * time.Second
	pushTimeout   = 30 * time.Second
	cloneTimeout  = 60 * time.Second
)

// Client issues git subprocess commands.
type Client struct {
	binary string
	exec   CommandExecutor
	l      *zap.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithExecutor substitutes the subprocess executor (used by tests)
func WithExecutor(e CommandExecutor) Option {
	return func(c *Client) {
		c.exec = e
	}
}

// WithLogger sets the client logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.l = l
	}
}

// WithBinary overrides the git executable name
func WithBinary(bin string) Option {
	return func(c *Client) {
		c.binary = bin
	}
}

// New builds a git client
func New(opts ...Option) *Client {
	c := &Client{
		binary: "git",
		exec:   NewExecExecutor(),
		l:      zap.NewNop(),
	}
	for _, apply := range opts {
		apply(c)
	}
	return c
}

func (c *Client) run(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binary, args...)
	out, err := c.exec.ExecuteWithOutput(cmd)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		c.l.Warn("git operation timed out", zap.Strings("args", args), zap.Duration("timeout", timeout))
		return out, ErrTimedOut
	}
	return out, err
}

func (c *Client) runIn(ctx context.Context, dir string, timeout time.Duration, args ...string) (string, error) {
	return c.run(ctx, timeout, append([]string{"-C", dir}, args...)...)
}

// IsRepository checks whether dir is inside a git working tree.
func (c *Client) IsRepository(ctx context.Context, dir string) bool {
	_, err := c.runIn(ctx, dir, configTimeout, "rev-parse", "--is-inside-work-tree")
	return err == nil
}

// Clone clones url into dir.
func (c *Client) Clone(ctx context.Context, url, dir string) error {
	_, err := c.run(ctx, cloneTimeout, "clone", url, dir)
	return err
}

// Init creates an empty repository in dir with the given initial branch.
func (c *Client) Init(ctx context.Context, dir, initialBranch string) error {
	_, err := c.run(ctx, localTimeout, "init", "--initial-branch", initialBranch, dir)
	return err
}

// Fetch refreshes remote tracking refs.
func (c *Client) Fetch(ctx context.Context, dir string) error {
	_, err := c.runIn(ctx, dir, fetchTimeout, "fetch", "origin")
	return err
}

// CurrentBranch returns the checked out branch name, empty on detached HEAD.
func (c *Client) CurrentBranch(ctx context.Context, dir string) (string, error) {
	out, err := c.runIn(ctx, dir, localTimeout, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// LocalBranches lists local branch names.
func (c *Client) LocalBranches(ctx context.Context, dir string) ([]string, error) {
	out, err := c.runIn(ctx, dir, localTimeout, "branch", "--list", "--format", "%(refname:short)")
	if err != nil {
		return nil, err
	}
	var branches []string
	for _, line := range strings.Split(out, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			branches = append(branches, name)
		}
	}
	return branches, nil
}

// HasLocalBranch reports whether a local branch exists.
func (c *Client) HasLocalBranch(ctx context.Context, dir, name string) (bool, error) {
	branches, err := c.LocalBranches(ctx, dir)
	if err != nil {
		return false, err
	}
	for _, b := range branches {
		if b == name {
			return true, nil
		}
	}
	return false, nil
}

// HasRemoteBranch reports whether a remote tracking branch origin/<name>
// is known locally. Callers fetch first when freshness matters.
func (c *Client) HasRemoteBranch(ctx context.Context, dir, name string) (bool, error) {
	out, err := c.runIn(ctx, dir, localTimeout, "branch", "--remotes", "--list", "origin/"+name, "--format", "%(refname:short)")
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "origin/"+name {
			return true, nil
		}
	}
	return false, nil
}

// Checkout switches to an existing branch.
func (c *Client) Checkout(ctx context.Context, dir, branch string) error {
	_, err := c.runIn(ctx, dir, localTimeout, "checkout", branch)
	return err
}

// CheckoutNew creates branch from source and switches to it. With an empty
// source the branch forks from HEAD.
func (c *Client) CheckoutNew(ctx context.Context, dir, branch, source string) error {
	args := []string{"checkout", "-b", branch}
	if source != "" {
		args = append(args, source)
	}
	_, err := c.runIn(ctx, dir, localTimeout, args...)
	return err
}

// HasChanges reports whether the working tree has uncommitted changes.
func (c *Client) HasChanges(ctx context.Context, dir string) (bool, error) {
	out, err := c.runIn(ctx, dir, localTimeout, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// AddAll stages every change in the working tree.
func (c *Client) AddAll(ctx context.Context, dir string) error {
	_, err := c.runIn(ctx, dir, localTimeout, "add", ".")
	return err
}

// Add stages a single path.
func (c *Client) Add(ctx context.Context, dir, path string) error {
	_, err := c.runIn(ctx, dir, localTimeout, "add", path)
	return err
}

// Commit records staged changes.
func (c *Client) Commit(ctx context.Context, dir, message string) error {
	_, err := c.runIn(ctx, dir, localTimeout, "commit", "-m", message)
	return err
}

// Push pushes a single branch to origin.
func (c *Client) Push(ctx context.Context, dir, branch string) error {
	_, err := c.runIn(ctx, dir, pushTimeout, "push", "origin", branch)
	return err
}

// SetRemoteURL points origin at url, adding the remote when absent.
func (c *Client) SetRemoteURL(ctx context.Context, dir, url string) error {
	if _, err := c.runIn(ctx, dir, localTimeout, "remote", "set-url", "origin", url); err == nil {
		return nil
	}
	_, err := c.runIn(ctx, dir, localTimeout, "remote", "add", "origin", url)
	return err
}

// ConfigGet reads a config key, returning an empty string when unset.
func (c *Client) ConfigGet(ctx context.Context, dir, key string) (string, error) {
	out, err := c.runIn(ctx, dir, configTimeout, "config", key)
	if err != nil {
		// exit status 1 just means the key is unset
		var gitErr *GitError
		if errors.As(err, &gitErr) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// ConfigSet writes a config key.
func (c *Client) ConfigSet(ctx context.Context, dir, key, value string) error {
	_, err := c.runIn(ctx, dir, configTimeout, "config", key, value)
	return err
}
