// Package storage provides a flat object store abstraction for study
// artifacts such as screen recordings and exported session logs.
//
// This package supports the following backends:
//   - S3 (AWS)
//   - local file system
package storage

import (
	"context"
	"io"
)

type errString string

func (e errString) Error() string { return string(e) }

const (
	// ErrNotFound indicates the requested object does not exist.
	ErrNotFound errString = "not found"

	// ErrForbidden indicates the backend denied access.
	ErrForbidden errString = "forbidden"
)

// Store implementations persist named objects on a flat keyspace.
//
// Typically this is something file system-like. Implementations of this
// interface are assumed to be fairly simple.
type Store interface {
	String() string
	Has(context.Context, string) (bool, error)
	Get(context.Context, string) (io.ReadCloser, error)
	Put(context.Context, string, io.Reader) error
	Delete(context.Context, string) error
	Keys(context.Context) ([]string, error)
}

// PipeIO copies a reader to a writer with a fixed buffer.
func PipeIO(writer io.Writer, reader io.Reader) (n int64, err error) {
	buf := make([]byte, 32*1024)
	return io.CopyBuffer(writer, reader, buf)
}
