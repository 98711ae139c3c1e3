// Package dockerd implements the runtime client contract against the
// Docker Engine HTTP/JSON API, over a unix socket or mutually
// authenticated TCP.
package dockerd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/zerolog"

	"github.com/doggy-tui/doggy/internal/runtime"
)

// Client talks to a Docker-compatible daemon through the official SDK.
type Client struct {
	cli *client.Client
	log zerolog.Logger
}

// New builds a client for the resolved connection and verifies the
// daemon is reachable with one ping.
func New(ctx context.Context, conn runtime.Connection, log zerolog.Logger) (*Client, error) {
	opts := []client.Opt{
		client.WithHost(conn.Host),
		client.WithAPIVersionNegotiation(),
	}
	if conn.TLS != nil {
		opts = append(opts, client.WithTLSClientConfig(conn.TLS.CA, conn.TLS.Cert, conn.TLS.Key))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("%w: docker daemon at %s: %v", runtime.ErrConnectionFailed, conn.Host, err)
	}

	log.Debug().Str("host", conn.Host).Bool("tls", conn.TLS != nil).Msg("docker backend connected")
	return &Client{cli: cli, log: log}, nil
}

func (c *Client) List(ctx context.Context, kind runtime.Kind) ([]runtime.Record, error) {
	switch kind {
	case runtime.KindContainer:
		ctrs, err := c.cli.ContainerList(ctx, container.ListOptions{All: true})
		if err != nil {
			return nil, c.mapErr("list containers", kind, "", err)
		}
		records := make([]runtime.Record, len(ctrs))
		for i, ctr := range ctrs {
			records[i] = containerRecord(ctr.ID, ctr.Names, ctr.Image, ctr.State, ctr.Created, ctr.Labels)
		}
		return records, nil

	case runtime.KindImage:
		imgs, err := c.cli.ImageList(ctx, image.ListOptions{})
		if err != nil {
			return nil, c.mapErr("list images", kind, "", err)
		}
		records := make([]runtime.Record, len(imgs))
		for i, img := range imgs {
			records[i] = imageRecord(img.ID, img.RepoTags, img.Created, img.Size, img.Labels)
		}
		return records, nil

	case runtime.KindNetwork:
		nets, err := c.cli.NetworkList(ctx, network.ListOptions{})
		if err != nil {
			return nil, c.mapErr("list networks", kind, "", err)
		}
		records := make([]runtime.Record, len(nets))
		for i, nw := range nets {
			records[i] = runtime.Record{
				ID:      nw.ID,
				Name:    nw.Name,
				Status:  nw.Driver,
				Created: nw.Created,
				Size:    runtime.SizeUnknown,
				Labels:  nw.Labels,
			}
		}
		return records, nil

	case runtime.KindVolume:
		resp, err := c.cli.VolumeList(ctx, volume.ListOptions{})
		if err != nil {
			return nil, c.mapErr("list volumes", kind, "", err)
		}
		records := make([]runtime.Record, 0, len(resp.Volumes))
		for _, vol := range resp.Volumes {
			records = append(records, volumeRecord(vol))
		}
		return records, nil

	case runtime.KindCompose:
		members, err := c.composeMembers(ctx)
		if err != nil {
			return nil, c.mapErr("list compose projects", kind, "", err)
		}
		return composeProjects(members), nil
	}
	return nil, &runtime.NotSupportedError{Backend: runtime.BackendDocker, Kind: kind}
}

func (c *Client) Inspect(ctx context.Context, kind runtime.Kind, id string) (string, error) {
	var (
		doc any
		err error
	)
	switch kind {
	case runtime.KindContainer:
		doc, err = c.cli.ContainerInspect(ctx, id)
	case runtime.KindImage:
		doc, _, err = c.cli.ImageInspectWithRaw(ctx, id)
	case runtime.KindNetwork:
		doc, err = c.cli.NetworkInspect(ctx, id, network.InspectOptions{Verbose: true})
	case runtime.KindVolume:
		doc, err = c.cli.VolumeInspect(ctx, id)
	case runtime.KindCompose:
		members, merr := c.composeMembers(ctx)
		if merr != nil {
			return "", c.mapErr("inspect compose project", kind, id, merr)
		}
		project := projectDocument(id, members)
		if project == nil {
			return "", &runtime.NotFoundError{Kind: kind, ID: id}
		}
		doc = project
	default:
		return "", &runtime.NotSupportedError{Backend: runtime.BackendDocker, Kind: kind}
	}
	if err != nil {
		return "", c.mapErr("inspect", kind, id, err)
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render inspect document: %w", err)
	}
	return string(body), nil
}

func (c *Client) Delete(ctx context.Context, kind runtime.Kind, id string) error {
	var err error
	switch kind {
	case runtime.KindContainer:
		err = c.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
	case runtime.KindImage:
		_, err = c.cli.ImageRemove(ctx, id, image.RemoveOptions{Force: true})
	case runtime.KindNetwork:
		err = c.cli.NetworkRemove(ctx, id)
	case runtime.KindVolume:
		err = c.cli.VolumeRemove(ctx, id, true)
	case runtime.KindCompose:
		// A project is a grouping, not a daemon object; its containers
		// are deleted individually from the container list.
		return &runtime.NotSupportedError{Backend: runtime.BackendDocker, Kind: kind}
	default:
		return &runtime.NotSupportedError{Backend: runtime.BackendDocker, Kind: kind}
	}
	if err != nil {
		return c.mapErr("delete", kind, id, err)
	}
	c.log.Info().Stringer("kind", kind).Str("id", id).Msg("resource deleted")
	return nil
}

// Logs returns a demultiplexed log stream for the container. The raw
// engine stream interleaves stdout/stderr frames; stdcopy unpacks them
// into a single pipe in original order.
func (c *Client) Logs(ctx context.Context, id string, follow bool) (io.ReadCloser, error) {
	raw, err := c.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     follow,
		Timestamps: false,
	})
	if err != nil {
		return nil, c.mapErr("container logs", runtime.KindContainer, id, err)
	}

	pr, pw := io.Pipe()
	go func() {
		defer raw.Close()
		_, err := stdcopy.StdCopy(pw, pw, raw)
		pw.CloseWithError(err)
	}()
	return pr, nil
}

// Exec starts cmd in the container with a TTY and returns the hijacked
// connection as an ordered bidirectional byte channel.
func (c *Client) Exec(ctx context.Context, id string, cmd []string) (*runtime.ExecConn, error) {
	created, err := c.cli.ContainerExecCreate(ctx, id, container.ExecOptions{
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		Tty:          true,
		Cmd:          cmd,
	})
	if err != nil {
		return nil, c.mapErr("create exec", runtime.KindContainer, id, err)
	}

	attached, err := c.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{Tty: true})
	if err != nil {
		return nil, c.mapErr("attach exec", runtime.KindContainer, id, err)
	}

	c.log.Debug().Str("id", id).Strs("cmd", cmd).Msg("exec session attached")
	return &runtime.ExecConn{
		Input:  attached.Conn,
		Output: attached.Reader,
		CloseFn: func() error {
			attached.Close()
			return nil
		},
	}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// mapErr folds SDK errors onto the shared taxonomy.
func (c *Client) mapErr(op string, kind runtime.Kind, id string, err error) error {
	switch {
	case err == nil:
		return nil
	case errdefs.IsNotFound(err):
		return &runtime.NotFoundError{Kind: kind, ID: id}
	case errdefs.IsUnauthorized(err) || errdefs.IsForbidden(err):
		return fmt.Errorf("%w: %s", runtime.ErrPermissionDenied, op)
	case connectionErr(err):
		return fmt.Errorf("%w: %s: %v", runtime.ErrConnectionFailed, op, err)
	default:
		return &runtime.BackendError{Op: op, Err: err}
	}
}

// connectionErr reports whether err means the daemon could not be
// reached, as opposed to the daemon rejecting the request.
func connectionErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func containerRecord(id string, names []string, img, state string, created int64, labels map[string]string) runtime.Record {
	name := ""
	if len(names) > 0 {
		name = strings.TrimPrefix(names[0], "/")
	}
	return runtime.Record{
		ID:      id,
		Name:    name,
		Status:  state,
		Image:   strings.SplitN(img, "@", 2)[0],
		Created: time.Unix(created, 0).UTC(),
		Size:    runtime.SizeUnknown,
		Labels:  labels,
	}
}

func imageRecord(id string, repoTags []string, created, size int64, labels map[string]string) runtime.Record {
	name := "<none>"
	if len(repoTags) > 0 && repoTags[0] != "<none>:<none>" {
		name = repoTags[0]
	}
	return runtime.Record{
		ID:      shortImageID(id),
		Name:    name,
		Status:  "",
		Created: time.Unix(created, 0).UTC(),
		Size:    size,
		Labels:  labels,
	}
}

func volumeRecord(vol *volume.Volume) runtime.Record {
	size := runtime.SizeUnknown
	if vol.UsageData != nil {
		size = vol.UsageData.Size
	}
	created, _ := time.Parse(time.RFC3339, vol.CreatedAt)
	return runtime.Record{
		ID:      vol.Name,
		Name:    vol.Name,
		Status:  vol.Driver,
		Created: created,
		Size:    size,
		Labels:  vol.Labels,
	}
}

// Compose attaches these labels to every container it starts.
const (
	composeProjectLabel = "com.docker.compose.project"
	composeServiceLabel = "com.docker.compose.service"
)

// composeMembers lists all containers as records, labels included, for
// the derived compose-project views.
func (c *Client) composeMembers(ctx context.Context) ([]runtime.Record, error) {
	ctrs, err := c.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, err
	}
	members := make([]runtime.Record, len(ctrs))
	for i, ctr := range ctrs {
		members[i] = containerRecord(ctr.ID, ctr.Names, ctr.Image, ctr.State, ctr.Created, ctr.Labels)
	}
	return members, nil
}

// composeProjects folds container records into one row per compose
// project. Containers without the project label are skipped. Created is
// the oldest member, status counts running members.
func composeProjects(members []runtime.Record) []runtime.Record {
	byProject := make(map[string][]runtime.Record)
	for _, r := range members {
		p := r.Labels[composeProjectLabel]
		if p == "" {
			continue
		}
		byProject[p] = append(byProject[p], r)
	}

	names := make([]string, 0, len(byProject))
	for p := range byProject {
		names = append(names, p)
	}
	sort.Strings(names)

	out := make([]runtime.Record, 0, len(names))
	for _, p := range names {
		group := byProject[p]
		running := 0
		created := group[0].Created
		for _, r := range group {
			if r.Status == "running" {
				running++
			}
			if r.Created.Before(created) {
				created = r.Created
			}
		}
		out = append(out, runtime.Record{
			ID:      p,
			Name:    p,
			Status:  fmt.Sprintf("%d/%d running", running, len(group)),
			Created: created,
			Size:    runtime.SizeUnknown,
		})
	}
	return out
}

type composeMember struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Service string `json:"service,omitempty"`
	Status  string `json:"status"`
	Image   string `json:"image"`
}

// projectDocument builds the inspect document for one compose project,
// or nil when no container carries its label.
func projectDocument(project string, members []runtime.Record) map[string]any {
	var list []composeMember
	for _, r := range members {
		if r.Labels[composeProjectLabel] != project {
			continue
		}
		list = append(list, composeMember{
			ID:      r.ID,
			Name:    r.Name,
			Service: r.Labels[composeServiceLabel],
			Status:  r.Status,
			Image:   r.Image,
		})
	}
	if list == nil {
		return nil
	}
	return map[string]any{"project": project, "containers": list}
}

// shortImageID drops the digest algorithm prefix and truncates to the
// familiar 12-character form.
func shortImageID(id string) string {
	if i := strings.IndexByte(id, ':'); i >= 0 {
		id = id[i+1:]
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}
