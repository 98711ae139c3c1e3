package cli

import (
	"strings"
	"testing"
)

func TestParseArgs_Defaults(t *testing.T) {
	config, err := ParseArgs(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.DockerSocket != "" || config.CRISocket != "" {
		t.Error("expected no endpoint overrides by default")
	}
	if config.Theme != "" {
		t.Errorf("theme should default to the persisted preference, got %q", config.Theme)
	}
}

func TestParseArgs_EndpointOverrides(t *testing.T) {
	config, err := ParseArgs([]string{"--docker", "/tmp/docker.sock"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.DockerSocket != "/tmp/docker.sock" {
		t.Errorf("docker override not parsed, got %q", config.DockerSocket)
	}

	config, err = ParseArgs([]string{"--cri", "/run/containerd/containerd.sock"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.CRISocket != "/run/containerd/containerd.sock" {
		t.Errorf("cri override not parsed, got %q", config.CRISocket)
	}
}

func TestParseArgs_MutuallyExclusiveEndpoints(t *testing.T) {
	_, err := ParseArgs([]string{"--docker", "/a.sock", "--cri", "/b.sock"})
	if err == nil {
		t.Fatal("expected error when both endpoints are forced")
	}
	if !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestParseArgs_HelpAndVersion(t *testing.T) {
	testCases := []struct {
		args          []string
		expectHelp    bool
		expectVersion bool
	}{
		{[]string{"--help"}, true, false},
		{[]string{"-h"}, true, false},
		{[]string{"--version"}, false, true},
		{[]string{"-v"}, false, true},
	}

	for i, tc := range testCases {
		config, err := ParseArgs(tc.args)
		if err != nil {
			t.Errorf("test case %d: unexpected error: %v", i, err)
			continue
		}
		if config.ShowHelp != tc.expectHelp {
			t.Errorf("test case %d: expected help %t, got %t", i, tc.expectHelp, config.ShowHelp)
		}
		if config.ShowVersion != tc.expectVersion {
			t.Errorf("test case %d: expected version %t, got %t", i, tc.expectVersion, config.ShowVersion)
		}
	}
}

func TestParseArgs_RejectsPositionalArgs(t *testing.T) {
	_, err := ParseArgs([]string{"containers"})
	if err == nil {
		t.Fatal("expected error for stray positional argument")
	}
	if !strings.Contains(err.Error(), "containers") {
		t.Errorf("error should name the argument: %v", err)
	}
}

func TestParseArgs_UnknownFlag(t *testing.T) {
	if _, err := ParseArgs([]string{"--bogus"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}
