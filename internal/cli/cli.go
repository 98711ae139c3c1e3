// Package cli parses the command line, resolves the runtime endpoint and
// starts the interactive program.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/doggy-tui/doggy/internal/persist"
	"github.com/doggy-tui/doggy/internal/resolve"
	"github.com/doggy-tui/doggy/internal/runtime"
	"github.com/doggy-tui/doggy/internal/runtime/cri"
	"github.com/doggy-tui/doggy/internal/runtime/dockerd"
	"github.com/doggy-tui/doggy/internal/tui"
)

const version = "0.1.0"

// connectTimeout bounds the initial backend handshake.
const connectTimeout = 10 * time.Second

// Config holds the parsed command-line configuration. An empty Theme
// means "use the persisted preference".
type Config struct {
	DockerSocket string
	CRISocket    string
	Theme        string
	ShowHelp     bool
	ShowVersion  bool
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{}
}

// ParseArgs parses command-line arguments and returns a configuration.
func ParseArgs(args []string) (Config, error) {
	config := DefaultConfig()

	fs := flag.NewFlagSet("doggy", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		fmt.Print(usage)
	}

	fs.StringVar(&config.DockerSocket, "docker", "", "connect to this docker socket path")
	fs.StringVar(&config.CRISocket, "cri", "", "connect to this CRI socket path")
	fs.StringVar(&config.Theme, "theme", config.Theme, "color theme (dark, dracula, light)")
	fs.BoolVar(&config.ShowHelp, "h", config.ShowHelp, "show help message")
	fs.BoolVar(&config.ShowHelp, "help", config.ShowHelp, "show help message")
	fs.BoolVar(&config.ShowVersion, "v", config.ShowVersion, "show version information")
	fs.BoolVar(&config.ShowVersion, "version", config.ShowVersion, "show version information")

	if err := fs.Parse(args); err != nil {
		return config, err
	}
	if config.ShowHelp || config.ShowVersion {
		return config, nil
	}

	if len(fs.Args()) > 0 {
		return config, fmt.Errorf("unexpected argument %q. Use -h for help", fs.Args()[0])
	}
	if config.DockerSocket != "" && config.CRISocket != "" {
		return config, errors.New("--docker and --cri are mutually exclusive")
	}
	return config, nil
}

// Run resolves an endpoint, connects the matching backend and hands the
// terminal to the interactive program.
func Run(config Config) error {
	if config.ShowHelp {
		fmt.Print(usage)
		return nil
	}
	if config.ShowVersion {
		fmt.Printf("doggy version %s\n", version)
		return nil
	}

	log, closeLog, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closeLog()

	conn, err := resolve.Resolve(resolve.Overrides{
		DockerSocket: config.DockerSocket,
		CRISocket:    config.CRISocket,
	}, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	var client runtime.Client
	switch conn.Backend {
	case runtime.BackendCRI:
		client, err = cri.New(ctx, conn.Host, log)
	default:
		client, err = dockerd.New(ctx, conn, log)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", conn.Host, err)
	}
	defer client.Close()

	log.Info().Str("host", conn.Host).Stringer("backend", conn.Backend).Msg("connected")

	model := tui.NewModel(client, conn, log)

	// Persisted preferences apply first; an explicit --theme wins.
	settings, settingsErr := loadSettings(log)
	model.ApplySettings(settings)
	if config.Theme != "" {
		model.SetTheme(config.Theme)
	}

	program := tea.NewProgram(model, tea.WithAltScreen())
	final, err := program.Run()
	if err != nil {
		return err
	}

	if m, ok := final.(*tui.Model); ok && settingsErr == nil {
		if mgr, mErr := persist.NewSettingsManager(); mErr == nil {
			if sErr := mgr.Save(m.Settings()); sErr != nil {
				log.Warn().Err(sErr).Msg("failed to save settings")
			}
		}
	}
	return nil
}

// loadSettings is best-effort: a broken config file must never keep the
// program from starting.
func loadSettings(log zerolog.Logger) (persist.Settings, error) {
	mgr, err := persist.NewSettingsManager()
	if err != nil {
		log.Warn().Err(err).Msg("settings unavailable")
		return persist.Settings{}, err
	}
	s, err := mgr.Load()
	if err != nil {
		log.Warn().Err(err).Msg("failed to load settings")
		return persist.Settings{}, err
	}
	return s, nil
}

// setupLogger writes structured logs to a file under the user cache dir.
// A TUI owns the terminal, so nothing may be logged to stdout or stderr.
// The DOGGY_LOG env var selects the level; logging is off without it.
func setupLogger() (zerolog.Logger, func(), error) {
	levelName := os.Getenv("DOGGY_LOG")
	if levelName == "" {
		return zerolog.Nop(), func() {}, nil
	}
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("invalid DOGGY_LOG level %q: %w", levelName, err)
	}

	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	dir := filepath.Join(cacheDir, "doggy")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return zerolog.Nop(), nil, err
	}

	f, err := os.OpenFile(filepath.Join(dir, "doggy.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, err
	}

	log := zerolog.New(f).Level(level).With().Timestamp().Logger()
	return log, func() { f.Close() }, nil
}

// usage string for the CLI.
const usage = `doggy - a TUI for browsing container runtimes

USAGE:
  doggy [flags]                # auto-detect a runtime and connect

RESOLUTION ORDER:
  DOCKER_HOST (+ DOCKER_CERT_PATH for TLS), then well-known docker
  sockets (daemon, Rancher Desktop, podman, OrbStack), then containerd
  CRI sockets. First match wins.

FLAGS:
  --docker PATH                connect to this docker socket
  --cri PATH                   connect to this CRI socket
  --theme NAME                 color theme: dark, dracula, light
  -h, --help                   show this help message
  -v, --version                show version information

ENVIRONMENT:
  DOCKER_HOST                  docker endpoint (tcp:// or unix://)
  DOCKER_CERT_PATH             directory with ca.pem, cert.pem, key.pem
  DOGGY_LOG                    log level (debug, info, warn, error);
                               logs go to the user cache dir, not the tty

HOTKEYS (once running):
  :                            switch resource list
  /                            filter the current list
  i, Enter                     inspect selected resource
  l                            follow container logs
  s / S                        shell into container / custom command
  Ctrl+D                       delete selected resource
  F1-F4                        sort columns
  ?                            full key reference
  q, Ctrl+C                    quit
`
