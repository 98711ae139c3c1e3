// Package stream owns the long-lived log and exec sessions. At most one
// session is active at a time; its output is pumped through a bounded
// channel into the interaction loop, never delivered by direct call.
package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/doggy-tui/doggy/internal/runtime"
)

// Kind distinguishes a log tail from an interactive exec.
type Kind int

const (
	KindLogs Kind = iota
	KindExec
)

func (k Kind) String() string {
	if k == KindExec {
		return "exec"
	}
	return "logs"
}

// State is the session lifecycle. Terminal states are Closed and Failed.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateActive
	StateDraining
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "failed"
	}
}

// Event is one item from a session: an output chunk, or, with Closed
// set, the terminal notification carrying the failure reason if any.
type Event struct {
	Data   []byte
	Closed bool
	Err    error
}

// flushEvery bounds how long partial (unterminated) output may sit in
// the coalescing buffer before it is pushed to the render sink.
const flushEvery = 50 * time.Millisecond

// eventBuffer is the bounded channel capacity between pump and UI.
const eventBuffer = 64

// Session is one live log or exec flow bound to a single resource.
type Session struct {
	Kind       Kind
	ResourceID string

	mu     sync.Mutex
	state  State
	err    error
	input  io.Writer // exec stdin sink, nil for logs
	cancel context.CancelFunc

	events chan Event
	done   chan struct{}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure reason once the session reached Failed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Events is the output channel; it is closed after the terminal event.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done is closed once the session has released its transport and
// reached a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Write forwards input bytes to the remote stdin sink in arrival order.
// Only an Active exec session accepts input.
func (s *Session) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Kind != KindExec || s.input == nil {
		return errors.New("session has no input channel")
	}
	if s.state != StateActive {
		return fmt.Errorf("session is %s, not active", s.state)
	}
	_, err := s.input.Write(p)
	return err
}

// Cancel requests cooperative shutdown. The session transitions through
// Draining and reaches Closed once the transport is released.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.state == StateActive || s.state == StateStarting {
		s.state = StateDraining
	}
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) setState(state State, err error) {
	s.mu.Lock()
	s.state = state
	if err != nil {
		s.err = err
	}
	s.mu.Unlock()
}

// Manager serializes session lifecycles over one shared runtime client.
type Manager struct {
	client runtime.Client
	log    zerolog.Logger

	// startMu is held across the whole stop-register-dial sequence so
	// two rapid starts can never leave two sessions active at once.
	startMu sync.Mutex

	mu     sync.Mutex
	active *Session
}

// NewManager creates a session manager on top of the shared client.
func NewManager(client runtime.Client, log zerolog.Logger) *Manager {
	return &Manager{client: client, log: log}
}

// Active returns the current session, which may already be terminal.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// StartLogs opens a log session for the container. Any prior session is
// cancelled and fully drained before the new one goes past Starting.
func (m *Manager) StartLogs(ctx context.Context, id string, follow bool) (*Session, error) {
	return m.start(ctx, KindLogs, id, func(sctx context.Context) (io.Reader, io.Writer, func() error, error) {
		rc, err := m.client.Logs(sctx, id, follow)
		if err != nil {
			return nil, nil, nil, err
		}
		return rc, nil, rc.Close, nil
	})
}

// StartExec opens an interactive exec session running cmd.
func (m *Manager) StartExec(ctx context.Context, id string, cmd []string) (*Session, error) {
	return m.start(ctx, KindExec, id, func(sctx context.Context) (io.Reader, io.Writer, func() error, error) {
		conn, err := m.client.Exec(sctx, id, cmd)
		if err != nil {
			return nil, nil, nil, err
		}
		return conn.Output, conn.Input, conn.Close, nil
	})
}

// Stop cancels the active session, if any, and waits for it to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()
	if active != nil {
		active.Cancel()
		<-active.done
	}
}

type dialFunc func(ctx context.Context) (io.Reader, io.Writer, func() error, error)

func (m *Manager) start(ctx context.Context, kind Kind, id string, dial dialFunc) (*Session, error) {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	// Never leave the previous session dangling: request cancellation
	// and wait until it has released its transport.
	m.Stop()

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		Kind:       kind,
		ResourceID: id,
		state:      StateStarting,
		cancel:     cancel,
		events:     make(chan Event, eventBuffer),
		done:       make(chan struct{}),
	}

	m.mu.Lock()
	m.active = s
	m.mu.Unlock()

	output, input, closeFn, err := dial(sctx)
	if err != nil {
		cancel()
		s.setState(StateFailed, err)
		close(s.events)
		close(s.done)
		return nil, err
	}

	s.mu.Lock()
	if s.state == StateStarting {
		s.state = StateActive
	}
	s.input = input
	s.mu.Unlock()

	m.log.Debug().Stringer("kind", kind).Str("id", id).Msg("stream session active")
	go s.pump(sctx, output, closeFn, m.log)
	return s, nil
}

// pump moves output from the transport to the event channel, coalescing
// partial lines and flushing them on a short idle timer so interactive
// programs stay responsive.
func (s *Session) pump(ctx context.Context, output io.Reader, closeFn func() error, log zerolog.Logger) {
	readCh := make(chan []byte)
	errCh := make(chan error, 1)
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := output.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case readCh <- chunk:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}
			if err != nil {
				errCh <- err
				return
			}
		}
	}()

	finish := func(readErr error) {
		// Release the transport before signaling the terminal state.
		if closeFn != nil {
			closeFn()
		}
		switch {
		case readErr == nil || errors.Is(readErr, io.EOF),
			errors.Is(readErr, context.Canceled),
			errors.Is(readErr, io.ErrClosedPipe):
			s.setState(StateClosed, nil)
			s.events <- Event{Closed: true}
		default:
			s.setState(StateFailed, readErr)
			s.events <- Event{Closed: true, Err: readErr}
		}
		close(s.events)
		close(s.done)
		log.Debug().Stringer("kind", s.Kind).Str("id", s.ResourceID).Stringer("state", s.State()).Msg("stream session finished")
	}

	var pending []byte
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	emit := func(data []byte) bool {
		select {
		case s.events <- Event{Data: data}:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case chunk := <-readCh:
			pending = append(pending, chunk...)
			// Complete lines go out immediately; the remainder waits
			// for more bytes or the idle flush.
			if i := bytes.LastIndexByte(pending, '\n'); i >= 0 {
				if !emit(append([]byte(nil), pending[:i+1]...)) {
					continue
				}
				pending = append(pending[:0], pending[i+1:]...)
			}

		case <-ticker.C:
			if len(pending) > 0 {
				if emit(append([]byte(nil), pending...)) {
					pending = pending[:0]
				}
			}

		case err := <-errCh:
			if len(pending) > 0 {
				emit(append([]byte(nil), pending...))
			}
			finish(err)
			return

		case <-ctx.Done():
			s.setState(StateDraining, nil)
			// Closing the transport unblocks the reader goroutine.
			if closeFn != nil {
				closeFn()
			}
			<-errCh
			finish(nil)
			return
		}
	}
}
