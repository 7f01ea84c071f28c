package gitsync

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OhItsLena/coding-study-test-sub000/pkg/locker"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/vcs"
)

// fakeGit emulates just enough git behavior for the synchronizer and
// coordinator: branch state, a dirty flag, and scripted push and fetch
// failures.
type fakeGit struct {
	mu sync.Mutex

	current  string
	local    []string
	remote   []string
	dirty    bool
	config   map[string]string
	fetchErr error

	// pushFailures[branch] is how many pushes of branch still fail.
	pushFailures map[string]int

	commits   []string
	pushes    []string
	checkouts []string
	clones    []string
	fetches   int
}

func newFakeGit() *fakeGit {
	return &fakeGit{
		config:       map[string]string{},
		pushFailures: map[string]int{},
	}
}

func (g *fakeGit) ExecuteWithOutput(cmd *exec.Cmd) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	args := cmd.Args[1:]
	if len(args) >= 2 && args[0] == "-C" {
		args = args[2:]
	}
	if len(args) == 0 {
		return "", errors.New("empty git invocation")
	}

	switch args[0] {
	case "rev-parse":
		return "true\n", nil
	case "fetch":
		g.fetches++
		if g.fetchErr != nil {
			return "", &vcs.GitError{Op: "git", Args: args, Stderr: "could not resolve host", Err: g.fetchErr}
		}
		return "", nil
	case "branch":
		return g.branchCmd(args[1:])
	case "checkout":
		return g.checkoutCmd(args[1:])
	case "status":
		if g.dirty {
			return " M task.py\n", nil
		}
		return "", nil
	case "add":
		return "", nil
	case "commit":
		msg := args[len(args)-1]
		g.commits = append(g.commits, msg)
		g.dirty = false
		return "", nil
	case "push":
		branch := args[len(args)-1]
		if n := g.pushFailures[branch]; n > 0 {
			g.pushFailures[branch] = n - 1
			return "", &vcs.GitError{Op: "git", Args: args, Stderr: "remote rejected", Err: errors.New("exit status 1")}
		}
		g.pushes = append(g.pushes, branch)
		return "", nil
	case "remote":
		return "", nil
	case "config":
		if len(args) == 2 {
			val, ok := g.config[args[1]]
			if !ok {
				return "", &vcs.GitError{Op: "git", Args: args, Err: errors.New("exit status 1")}
			}
			return val + "\n", nil
		}
		g.config[args[1]] = args[2]
		return "", nil
	case "clone":
		g.clones = append(g.clones, args[1])
		// leave a working tree behind so later calls see the repository
		if err := os.MkdirAll(filepath.Join(args[2], ".git"), 0o755); err != nil {
			return "", err
		}
		return "", nil
	case "init":
		return "", nil
	default:
		return "", fmt.Errorf("unscripted git command %q", args[0])
	}
}

func (g *fakeGit) branchCmd(args []string) (string, error) {
	joined := strings.Join(args, " ")
	switch {
	case strings.Contains(joined, "--show-current"):
		return g.current + "\n", nil
	case strings.Contains(joined, "--remotes"):
		// args: --remotes --list origin/<name> --format ...
		var pattern string
		for i, a := range args {
			if a == "--list" && i+1 < len(args) {
				pattern = args[i+1]
			}
		}
		for _, r := range g.remote {
			if "origin/"+r == pattern {
				return pattern + "\n", nil
			}
		}
		return "", nil
	default:
		return strings.Join(g.local, "\n") + "\n", nil
	}
}

func (g *fakeGit) checkoutCmd(args []string) (string, error) {
	if len(args) > 0 && args[0] == "-b" {
		branch := args[1]
		g.local = append(g.local, branch)
		g.current = branch
		g.checkouts = append(g.checkouts, strings.Join(args, " "))
		return "", nil
	}
	branch := args[0]
	for _, b := range g.local {
		if b == branch {
			g.current = branch
			g.checkouts = append(g.checkouts, branch)
			return "", nil
		}
	}
	return "", &vcs.GitError{Op: "git", Args: args, Stderr: "pathspec did not match", Err: errors.New("exit status 1")}
}

func (g *fakeGit) checkoutLog() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.checkouts))
	copy(out, g.checkouts)
	return out
}

func (g *fakeGit) pushLog() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.pushes))
	copy(out, g.pushes)
	return out
}

func (g *fakeGit) commitLog() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.commits))
	copy(out, g.commits)
	return out
}

// testRig bundles the study git machinery over a fake git and a real
// temporary workspace directory.
type testRig struct {
	git   *fakeGit
	locks *locker.Registry
	ws    *Workspace
	sync  *Synchronizer
	root  string
}

func newTestRig(t *testing.T, creds Credentials) *testRig {
	t.Helper()
	fake := newFakeGit()
	client := vcs.New(vcs.WithExecutor(fake))
	locks := locker.NewRegistry()
	root := t.TempDir()
	return &testRig{
		git:   fake,
		locks: locks,
		ws:    NewWorkspace(root, client, locks, creds),
		sync:  NewSynchronizer(client, locks),
		root:  root,
	}
}

func (r *testRig) client() *vcs.Client {
	return vcs.New(vcs.WithExecutor(r.git))
}

// materializeRepo creates the on-disk shape of a working tree so the
// repository precondition checks pass.
func materializeRepo(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(path, ".git"), 0o755))
}
