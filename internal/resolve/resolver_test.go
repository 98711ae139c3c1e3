package resolve

import (
	"crypto/tls"
	"errors"
	"io/fs"
	"os"
	"strings"
	"testing"

	"github.com/docker/go-connections/tlsconfig"
	"github.com/rs/zerolog"

	"github.com/doggy-tui/doggy/internal/runtime"
)

func stubEnv(t *testing.T, env map[string]string) {
	t.Helper()
	orig := envGetFn
	envGetFn = func(key string) string { return env[key] }
	t.Cleanup(func() { envGetFn = orig })
}

func stubSockets(t *testing.T, present ...string) {
	t.Helper()
	origStat, origHome := statFn, homeDirFn
	statFn = func(path string) (os.FileInfo, error) {
		for _, p := range present {
			if p == path {
				return nil, nil
			}
		}
		return nil, fs.ErrNotExist
	}
	homeDirFn = func() (string, error) { return "/home/op", nil }
	t.Cleanup(func() {
		statFn = origStat
		homeDirFn = origHome
	})
}

func stubTLS(t *testing.T, err error) {
	t.Helper()
	orig := tlsLoadFn
	tlsLoadFn = func(o tlsconfig.Options) (*tls.Config, error) {
		if err != nil {
			return nil, err
		}
		return &tls.Config{}, nil
	}
	t.Cleanup(func() { tlsLoadFn = orig })
}

func TestResolve_TLSFromEnvironment(t *testing.T) {
	stubEnv(t, map[string]string{
		"DOCKER_HOST":      "tcp://h:2376",
		"DOCKER_CERT_PATH": "/c",
	})
	stubSockets(t)
	stubTLS(t, nil)

	conn, err := Resolve(Overrides{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if conn.Backend != runtime.BackendDocker {
		t.Errorf("expected docker backend, got %v", conn.Backend)
	}
	if conn.Host != "tcp://h:2376" {
		t.Errorf("unexpected host %q", conn.Host)
	}
	if conn.TLS == nil {
		t.Fatal("expected TLS material")
	}
	if conn.TLS.CA != "/c/ca.pem" || conn.TLS.Cert != "/c/cert.pem" || conn.TLS.Key != "/c/key.pem" {
		t.Errorf("unexpected TLS paths: %+v", conn.TLS)
	}
}

func TestResolve_BrokenTLSMaterialFailsEarly(t *testing.T) {
	stubEnv(t, map[string]string{
		"DOCKER_HOST":      "tcp://h:2376",
		"DOCKER_CERT_PATH": "/c",
	})
	stubSockets(t)
	stubTLS(t, errors.New("could not read CA certificate"))

	_, err := Resolve(Overrides{}, zerolog.Nop())
	if err == nil {
		t.Fatal("expected error for unreadable TLS material")
	}
	if !strings.Contains(err.Error(), "TLS material") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestResolve_PlainTCPFromEnvironment(t *testing.T) {
	stubEnv(t, map[string]string{"DOCKER_HOST": "tcp://h:2375"})
	stubSockets(t)

	conn, err := Resolve(Overrides{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if conn.TLS != nil {
		t.Error("expected no TLS material")
	}
	if conn.Host != "tcp://h:2375" {
		t.Errorf("unexpected host %q", conn.Host)
	}
}

func TestResolve_DockerSocketProbe(t *testing.T) {
	stubEnv(t, nil)
	stubSockets(t, "/var/run/docker.sock")

	conn, err := Resolve(Overrides{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if conn.Backend != runtime.BackendDocker {
		t.Errorf("expected docker backend, got %v", conn.Backend)
	}
	if conn.Host != "unix:///var/run/docker.sock" {
		t.Errorf("unexpected host %q", conn.Host)
	}
}

func TestResolve_FallsBackToCRISocket(t *testing.T) {
	stubEnv(t, nil)
	stubSockets(t, "/var/run/containerd/containerd.sock")

	conn, err := Resolve(Overrides{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if conn.Backend != runtime.BackendCRI {
		t.Errorf("expected cri backend, got %v", conn.Backend)
	}
	if conn.Host != "/var/run/containerd/containerd.sock" {
		t.Errorf("unexpected host %q", conn.Host)
	}
}

func TestResolve_DockerWinsOverCRI(t *testing.T) {
	stubEnv(t, nil)
	stubSockets(t, "/var/run/docker.sock", "/run/containerd/containerd.sock")

	conn, err := Resolve(Overrides{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if conn.Backend != runtime.BackendDocker {
		t.Errorf("first match should win in documented order, got %v", conn.Backend)
	}
}

func TestResolve_DesktopSocketProbe(t *testing.T) {
	stubEnv(t, nil)
	stubSockets(t, "/home/op/.orbstack/run/docker.sock")

	conn, err := Resolve(Overrides{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if conn.Host != "unix:///home/op/.orbstack/run/docker.sock" {
		t.Errorf("unexpected host %q", conn.Host)
	}
}

func TestResolve_NoRuntimeFound(t *testing.T) {
	stubEnv(t, nil)
	stubSockets(t)

	_, err := Resolve(Overrides{}, zerolog.Nop())
	if !errors.Is(err, runtime.ErrNoRuntimeFound) {
		t.Fatalf("expected ErrNoRuntimeFound, got %v", err)
	}
}

func TestResolve_FlagOverrides(t *testing.T) {
	stubEnv(t, map[string]string{"DOCKER_HOST": "tcp://ignored:2375"})
	stubSockets(t)

	conn, err := Resolve(Overrides{CRISocket: "/tmp/cri.sock"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if conn.Backend != runtime.BackendCRI || conn.Host != "/tmp/cri.sock" {
		t.Errorf("flag should force CRI endpoint, got %+v", conn)
	}

	conn, err = Resolve(Overrides{DockerSocket: "/tmp/docker.sock"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if conn.Backend != runtime.BackendDocker || conn.Host != "unix:///tmp/docker.sock" {
		t.Errorf("flag should force docker endpoint, got %+v", conn)
	}

	if _, err := Resolve(Overrides{DockerSocket: "/a", CRISocket: "/b"}, zerolog.Nop()); err == nil {
		t.Error("expected error when both overrides are set")
	}
}
