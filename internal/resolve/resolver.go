// Package resolve decides, once at startup, which runtime endpoint the
// process talks to for its whole lifetime.
package resolve

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/docker/go-connections/tlsconfig"
	"github.com/rs/zerolog"

	"github.com/doggy-tui/doggy/internal/runtime"
)

// Stubbed for tests, same trick Pulse uses for its platform probes.
var (
	envGetFn  = os.Getenv
	statFn    = os.Stat
	homeDirFn = os.UserHomeDir
	tlsLoadFn = func(o tlsconfig.Options) (*tls.Config, error) {
		return tlsconfig.Client(o)
	}
)

const dockerSocketPath = "/var/run/docker.sock"

// Desktop runtimes expose Docker-compatible sockets under the home dir.
var desktopSocketPaths = []string{
	".rd/docker.sock",
	".local/share/containers/podman/machine/podman.sock",
	".orbstack/run/docker.sock",
}

// CRI candidates come last: a Docker-compatible endpoint is preferred
// whenever both are present.
var criSocketPaths = []string{
	"/run/containerd/containerd.sock",
	"/var/run/containerd/containerd.sock",
}

// Overrides are the explicit socket-path flags. Setting one forces the
// backend kind and bypasses the env/probe sequence for it.
type Overrides struct {
	DockerSocket string
	CRISocket    string
}

// Resolve runs the ordered decision procedure:
//  1. DOCKER_HOST + DOCKER_CERT_PATH set -> TLS-secured TCP
//  2. DOCKER_HOST set -> plain TCP
//  3. probe candidate sockets in documented order, first match wins
//  4. nothing found -> ErrNoRuntimeFound
func Resolve(overrides Overrides, log zerolog.Logger) (runtime.Connection, error) {
	if overrides.DockerSocket != "" && overrides.CRISocket != "" {
		return runtime.Connection{}, errors.New("specify --docker or --cri, not both")
	}
	if overrides.DockerSocket != "" {
		log.Debug().Str("socket", overrides.DockerSocket).Msg("docker endpoint forced by flag")
		return runtime.Connection{Backend: runtime.BackendDocker, Host: "unix://" + overrides.DockerSocket}, nil
	}
	if overrides.CRISocket != "" {
		log.Debug().Str("socket", overrides.CRISocket).Msg("cri endpoint forced by flag")
		return runtime.Connection{Backend: runtime.BackendCRI, Host: overrides.CRISocket}, nil
	}

	host := envGetFn("DOCKER_HOST")
	certDir := envGetFn("DOCKER_CERT_PATH")
	switch {
	case host != "" && certDir != "":
		paths := &runtime.TLSPaths{
			CA:   filepath.Join(certDir, "ca.pem"),
			Cert: filepath.Join(certDir, "cert.pem"),
			Key:  filepath.Join(certDir, "key.pem"),
		}
		// Fail on unreadable or mismatched material now, not at dial time.
		if _, err := tlsLoadFn(tlsconfig.Options{
			CAFile:   paths.CA,
			CertFile: paths.Cert,
			KeyFile:  paths.Key,
		}); err != nil {
			return runtime.Connection{}, fmt.Errorf("load docker TLS material from %s: %w", certDir, err)
		}
		log.Debug().Str("host", host).Str("certs", certDir).Msg("resolved tls tcp endpoint from environment")
		return runtime.Connection{
			Backend: runtime.BackendDocker,
			Host:    host,
			TLS:     paths,
		}, nil
	case host != "":
		log.Debug().Str("host", host).Msg("resolved plain tcp endpoint from environment")
		return runtime.Connection{Backend: runtime.BackendDocker, Host: host}, nil
	}

	for _, candidate := range candidates() {
		if _, err := statFn(candidate.path); err != nil {
			continue
		}
		log.Debug().Str("socket", candidate.path).Stringer("backend", candidate.backend).Msg("resolved local socket")
		if candidate.backend == runtime.BackendCRI {
			return runtime.Connection{Backend: runtime.BackendCRI, Host: candidate.path}, nil
		}
		return runtime.Connection{Backend: runtime.BackendDocker, Host: "unix://" + candidate.path}, nil
	}

	return runtime.Connection{}, fmt.Errorf("%w: no DOCKER_HOST and no known socket present", runtime.ErrNoRuntimeFound)
}

type candidate struct {
	path    string
	backend runtime.BackendKind
}

func candidates() []candidate {
	out := []candidate{{dockerSocketPath, runtime.BackendDocker}}
	if home, err := homeDirFn(); err == nil && home != "" {
		for _, rel := range desktopSocketPaths {
			out = append(out, candidate{filepath.Join(home, rel), runtime.BackendDocker})
		}
	}
	for _, p := range criSocketPaths {
		out = append(out, candidate{p, runtime.BackendCRI})
	}
	return out
}
