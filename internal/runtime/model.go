package runtime

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies a resource category exposed by a container runtime.
type Kind int

const (
	KindContainer Kind = iota
	KindImage
	KindNetwork
	KindVolume
	// KindCompose is a derived kind: one row per compose project,
	// folded out of the container list by its labels.
	KindCompose
)

// Kinds lists every kind in display order.
var Kinds = []Kind{KindContainer, KindImage, KindNetwork, KindVolume, KindCompose}

func (k Kind) String() string {
	switch k {
	case KindContainer:
		return "containers"
	case KindImage:
		return "images"
	case KindNetwork:
		return "networks"
	case KindVolume:
		return "volumes"
	case KindCompose:
		return "compose"
	default:
		return "unknown"
	}
}

// ParseKind resolves a command-mode token into a Kind. Unambiguous
// prefixes are accepted, so ":cont", ":img" and ":vol" all work.
func ParseKind(token string) (Kind, error) {
	t := strings.ToLower(strings.TrimSpace(token))
	if t == "" {
		return 0, fmt.Errorf("empty resource name")
	}
	var matches []Kind
	for _, k := range Kinds {
		if strings.HasPrefix(k.String(), t) {
			matches = append(matches, k)
		}
	}
	// Common aliases that are not plain prefixes.
	if len(matches) == 0 {
		switch t {
		case "img", "imgs":
			matches = []Kind{KindImage}
		case "net", "nets":
			matches = []Kind{KindNetwork}
		case "vol", "vols":
			matches = []Kind{KindVolume}
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return 0, fmt.Errorf("unknown resource %q", token)
	default:
		return 0, fmt.Errorf("ambiguous resource %q", token)
	}
}

// SizeUnknown marks a record whose backend does not report a size.
const SizeUnknown int64 = -1

// Record is an immutable snapshot of one resource. Lists of records are
// replaced wholesale on refresh, never patched in place.
type Record struct {
	ID      string
	Name    string
	Status  string
	Image   string // containers only; image reference the container runs
	Created time.Time
	Size    int64 // bytes, SizeUnknown when the backend has no figure
	Labels  map[string]string
}

// Connection describes the single resolved runtime endpoint for the
// process lifetime.
type Connection struct {
	Backend BackendKind
	Host    string // docker host URL or unix socket path
	TLS     *TLSPaths
}

// BackendKind selects which wire protocol the endpoint speaks.
type BackendKind int

const (
	BackendDocker BackendKind = iota
	BackendCRI
)

func (b BackendKind) String() string {
	if b == BackendCRI {
		return "cri"
	}
	return "docker"
}

// TLSPaths holds the certificate material for a mutually-authenticated
// TCP connection to a Docker daemon.
type TLSPaths struct {
	CA   string
	Cert string
	Key  string
}
