package persist

import (
	"os"
	"path/filepath"
	"testing"
)

func tempManager(t *testing.T) *SettingsManager {
	t.Helper()
	return &SettingsManager{path: filepath.Join(t.TempDir(), "config.json")}
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	m := tempManager(t)
	s, err := m.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Theme != "" || s.ShowStopped {
		t.Errorf("expected zero settings, got %+v", s)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	m := tempManager(t)
	want := Settings{Theme: "dracula", ShowStopped: true}
	if err := m.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := m.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != want {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}

	// No stray temp file left behind.
	if _, err := os.Stat(m.path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file not cleaned up")
	}
}

func TestLoad_CorruptFileErrors(t *testing.T) {
	m := tempManager(t)
	if err := os.WriteFile(m.path, []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Load(); err == nil {
		t.Error("expected error for corrupt settings file")
	}
}
