package runtime

import (
	"context"
	"io"
)

// Client is the capability contract both backends implement. One Client
// is constructed at startup from the resolved Connection and shared
// read-only by every concurrent request; stream readers returned by Logs
// and Exec are owned exclusively by their session.
type Client interface {
	// List returns a fresh snapshot of every resource of the kind.
	List(ctx context.Context, kind Kind) ([]Record, error)

	// Inspect returns the backend's detail document for one resource,
	// rendered as indented JSON.
	Inspect(ctx context.Context, kind Kind, id string) (string, error)

	// Delete removes the resource. Removal is forced where the backend
	// distinguishes; a successful call means the next List no longer
	// contains the id.
	Delete(ctx context.Context, kind Kind, id string) error

	// Logs streams log lines for a container. With follow=false the
	// stream is finite; with follow=true it runs until the reader is
	// closed or ctx is cancelled.
	Logs(ctx context.Context, id string, follow bool) (io.ReadCloser, error)

	// Exec starts cmd inside a container and returns the attached
	// bidirectional byte channel.
	Exec(ctx context.Context, id string, cmd []string) (*ExecConn, error)

	Close() error
}

// ExecConn is the attached end of an interactive exec: one ordered stdin
// sink and one ordered stdout/stderr source. CloseFn releases the
// underlying transport; it must be safe to call more than once.
type ExecConn struct {
	Input   io.Writer
	Output  io.Reader
	CloseFn func() error
}

// Close releases the exec transport.
func (c *ExecConn) Close() error {
	if c.CloseFn == nil {
		return nil
	}
	return c.CloseFn()
}
