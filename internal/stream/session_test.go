package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/doggy-tui/doggy/internal/runtime"
)

func collectUntilClosed(t *testing.T, s *Session) (string, Event) {
	t.Helper()
	var out strings.Builder
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				t.Fatal("events channel closed without terminal event")
			}
			if ev.Closed {
				return out.String(), ev
			}
			out.Write(ev.Data)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for session to close")
		}
	}
}

func TestLogs_FiniteStreamCloses(t *testing.T) {
	fake := runtime.NewFakeClient()
	fake.AddLogLines("c1", "hello", "world")
	m := NewManager(fake, zerolog.Nop())

	s, err := m.StartLogs(context.Background(), "c1", false)
	if err != nil {
		t.Fatalf("StartLogs failed: %v", err)
	}

	out, terminal := collectUntilClosed(t, s)
	if terminal.Err != nil {
		t.Errorf("clean end should carry no error, got %v", terminal.Err)
	}
	if out != "hello\nworld\n" {
		t.Errorf("unexpected output %q", out)
	}
	if s.State() != StateClosed {
		t.Errorf("expected Closed, got %v", s.State())
	}
}

func TestLogs_FollowIsCancellable(t *testing.T) {
	fake := runtime.NewFakeClient()
	fake.AddLogLines("c1", "line")
	m := NewManager(fake, zerolog.Nop())

	s, err := m.StartLogs(context.Background(), "c1", true)
	if err != nil {
		t.Fatalf("StartLogs failed: %v", err)
	}

	// Let the canned line come through, then cancel.
	time.Sleep(100 * time.Millisecond)
	s.Cancel()

	_, terminal := collectUntilClosed(t, s)
	if terminal.Err != nil {
		t.Errorf("cancellation should close cleanly, got %v", terminal.Err)
	}
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after cancel")
	}
	if s.State() != StateClosed {
		t.Errorf("expected Closed after cancel, got %v", s.State())
	}
}

func TestStart_SupersedesActiveSession(t *testing.T) {
	fake := runtime.NewFakeClient()
	m := NewManager(fake, zerolog.Nop())

	first, err := m.StartLogs(context.Background(), "c1", true)
	if err != nil {
		t.Fatalf("first StartLogs failed: %v", err)
	}
	if first.State() != StateActive {
		t.Fatalf("expected first session Active, got %v", first.State())
	}

	second, err := m.StartLogs(context.Background(), "c2", true)
	if err != nil {
		t.Fatalf("second StartLogs failed: %v", err)
	}

	// The old session must be terminal before the new one is active.
	select {
	case <-first.Done():
	default:
		t.Error("first session still live after second started")
	}
	if st := first.State(); st != StateClosed && st != StateFailed {
		t.Errorf("first session should be terminal, got %v", st)
	}
	if second.State() != StateActive {
		t.Errorf("second session should be Active, got %v", second.State())
	}
	if m.Active() != second {
		t.Error("manager should track the new session")
	}
	second.Cancel()
	<-second.Done()
}

func TestStart_ConcurrentStartsKeepOneActive(t *testing.T) {
	fake := runtime.NewFakeClient()
	m := NewManager(fake, zerolog.Nop())

	var wg sync.WaitGroup
	sessions := make(chan *Session, 200)
	for g := 0; g < 2; g++ {
		id := fmt.Sprintf("c%d", g)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if s, err := m.StartLogs(context.Background(), id, true); err == nil {
					sessions <- s
				}
			}
		}()
	}
	wg.Wait()
	close(sessions)

	active := 0
	for s := range sessions {
		if s.State() == StateActive {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("%d sessions active after the dust settles, want exactly 1", active)
	}
	m.Stop()
}

func TestStart_DialFailureIsFailed(t *testing.T) {
	fake := runtime.NewFakeClient()
	dialErr := errors.New("no such container")
	fake.SetError("Logs", dialErr)
	m := NewManager(fake, zerolog.Nop())

	s, err := m.StartLogs(context.Background(), "gone", false)
	if err == nil {
		t.Fatal("expected dial error")
	}
	if s != nil {
		t.Fatal("failed start should not return a session")
	}
	if active := m.Active(); active.State() != StateFailed {
		t.Errorf("expected Failed, got %v", active.State())
	}
}

func TestExec_InputForwardedInOrder(t *testing.T) {
	fake := runtime.NewFakeClient()
	m := NewManager(fake, zerolog.Nop())

	s, err := m.StartExec(context.Background(), "c1", []string{"/bin/bash"})
	if err != nil {
		t.Fatalf("StartExec failed: %v", err)
	}

	for _, chunk := range []string{"ls", " -la", "\n"} {
		if err := s.Write([]byte(chunk)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if got := fake.ExecInput.String(); got != "ls -la\n" {
		t.Errorf("stdin not forwarded in order: %q", got)
	}

	s.Cancel()
	<-s.Done()
	if err := s.Write([]byte("x")); err == nil {
		t.Error("write after close should fail")
	}
}

func TestExec_PartialOutputFlushedOnIdle(t *testing.T) {
	fake := runtime.NewFakeClient()
	fake.ExecOutput = "prompt$ " // no trailing newline
	m := NewManager(fake, zerolog.Nop())

	s, err := m.StartExec(context.Background(), "c1", []string{"/bin/sh"})
	if err != nil {
		t.Fatalf("StartExec failed: %v", err)
	}
	defer func() {
		s.Cancel()
		<-s.Done()
	}()

	select {
	case ev := <-s.Events():
		if string(ev.Data) != "prompt$ " {
			t.Errorf("expected partial output flushed, got %q", ev.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("partial output was never flushed")
	}
}

func TestWrite_RejectedForLogSessions(t *testing.T) {
	fake := runtime.NewFakeClient()
	fake.AddLogLines("c1", "x")
	m := NewManager(fake, zerolog.Nop())

	s, err := m.StartLogs(context.Background(), "c1", true)
	if err != nil {
		t.Fatalf("StartLogs failed: %v", err)
	}
	defer func() {
		s.Cancel()
		<-s.Done()
	}()

	if err := s.Write([]byte("input")); err == nil {
		t.Error("log sessions must not accept input")
	}
}
