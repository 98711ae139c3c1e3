package runtime

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
)

// FakeClient implements Client for testing. Records are returned as-is,
// log streams replay canned lines, and exec wires the caller to an
// in-memory pipe so tests can script both directions.
type FakeClient struct {
	mu      sync.Mutex
	records map[Kind][]Record
	details map[string]string
	logs    map[string][]string
	errors  map[string]error // method name -> error to return
	deleted []string
	closed  bool

	// ExecOutput is replayed as the remote stdout of every exec session.
	ExecOutput string
	// ExecInput captures everything written to the exec stdin sink.
	ExecInput strings.Builder
}

// NewFakeClient creates an empty fake runtime client.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		records: make(map[Kind][]Record),
		details: make(map[string]string),
		logs:    make(map[string][]string),
		errors:  make(map[string]error),
	}
}

// AddRecord registers a resource snapshot under its kind.
func (f *FakeClient) AddRecord(kind Kind, r Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[kind] = append(f.records[kind], r)
}

// SetDetail registers a canned inspect document for a resource id.
// Without one, Inspect falls back to rendering the record as JSON.
func (f *FakeClient) SetDetail(id, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.details[id] = body
}

// AddLogLines registers canned log output for a container id.
func (f *FakeClient) AddLogLines(id string, lines ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs[id] = append(f.logs[id], lines...)
}

// SetError makes the named method fail with err.
func (f *FakeClient) SetError(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[method] = err
}

// Deleted returns the ids passed to Delete, in call order.
func (f *FakeClient) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.deleted))
	copy(out, f.deleted)
	return out
}

func (f *FakeClient) List(ctx context.Context, kind Kind) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errors["List"]; err != nil {
		return nil, err
	}
	out := make([]Record, len(f.records[kind]))
	copy(out, f.records[kind])
	return out, nil
}

func (f *FakeClient) Inspect(ctx context.Context, kind Kind, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errors["Inspect"]; err != nil {
		return "", err
	}
	if body, ok := f.details[id]; ok {
		return body, nil
	}
	for _, r := range f.records[kind] {
		if r.ID == id {
			body, _ := json.MarshalIndent(r, "", "  ")
			return string(body), nil
		}
	}
	return "", &NotFoundError{Kind: kind, ID: id}
}

func (f *FakeClient) Delete(ctx context.Context, kind Kind, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errors["Delete"]; err != nil {
		return err
	}
	kept := f.records[kind][:0]
	found := false
	for _, r := range f.records[kind] {
		if r.ID == id {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	if !found {
		return &NotFoundError{Kind: kind, ID: id}
	}
	f.records[kind] = kept
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *FakeClient) Logs(ctx context.Context, id string, follow bool) (io.ReadCloser, error) {
	f.mu.Lock()
	if err := f.errors["Logs"]; err != nil {
		f.mu.Unlock()
		return nil, err
	}
	lines := f.logs[id]
	f.mu.Unlock()

	pr, pw := io.Pipe()
	go func() {
		for _, line := range lines {
			if _, err := io.WriteString(pw, line+"\n"); err != nil {
				return
			}
		}
		if follow {
			// A followed stream stays open until the reader closes it.
			<-ctx.Done()
			pw.CloseWithError(ctx.Err())
			return
		}
		pw.Close()
	}()
	return pr, nil
}

func (f *FakeClient) Exec(ctx context.Context, id string, cmd []string) (*ExecConn, error) {
	f.mu.Lock()
	if err := f.errors["Exec"]; err != nil {
		f.mu.Unlock()
		return nil, err
	}
	out := f.ExecOutput
	f.mu.Unlock()

	pr, pw := io.Pipe()
	go func() {
		if out != "" {
			io.WriteString(pw, out)
		}
		<-ctx.Done()
		pw.Close()
	}()
	return &ExecConn{
		Input:   &lockedWriter{fc: f},
		Output:  pr,
		CloseFn: pr.Close,
	}, nil
}

func (f *FakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *FakeClient) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type lockedWriter struct {
	fc *FakeClient
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.fc.mu.Lock()
	defer w.fc.mu.Unlock()
	return w.fc.ExecInput.Write(p)
}
