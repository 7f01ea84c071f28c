// Package status exports errors produced by the gitsync package.
package status

import "errors"

var (
	// ErrRepositoryMissing indicates the repository directory does not exist.
	// Retrying without cloning first cannot succeed.
	ErrRepositoryMissing = errors.New("repository directory does not exist")

	// ErrNotARepository indicates the directory exists but holds no git
	// working tree.
	ErrNotARepository = errors.New("directory is not a git repository")

	// ErrSourceBranchMissing indicates the requested source branch exists
	// neither locally nor on the remote; the target branch is not created.
	ErrSourceBranchMissing = errors.New("source branch not found")

	// ErrBranchNotFound indicates no local or remote branch matched the
	// target name and no source was given.
	ErrBranchNotFound = errors.New("branch not found locally or on remote")

	// ErrInvalidStage indicates a stage outside the known study stages.
	ErrInvalidStage = errors.New("invalid study stage")
)
