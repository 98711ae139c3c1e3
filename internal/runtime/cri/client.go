// Package cri implements the runtime client contract against the CRI
// gRPC RuntimeService/ImageService, as served by containerd or CRI-O
// over a local unix socket.
package cri

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	runtimeapi "k8s.io/cri-api/pkg/apis/runtime/v1"

	"github.com/doggy-tui/doggy/internal/runtime"
)

// Client talks CRI v1 over one shared gRPC channel.
type Client struct {
	conn *grpc.ClientConn
	rt   runtimeapi.RuntimeServiceClient
	img  runtimeapi.ImageServiceClient
	log  zerolog.Logger
}

// New dials the CRI socket and verifies the runtime answers a Version
// request before handing the client out.
func New(ctx context.Context, socketPath string, log zerolog.Logger) (*Client, error) {
	conn, err := grpc.NewClient("unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("create cri channel: %w", err)
	}

	c := &Client{
		conn: conn,
		rt:   runtimeapi.NewRuntimeServiceClient(conn),
		img:  runtimeapi.NewImageServiceClient(conn),
		log:  log,
	}

	version, err := c.rt.Version(ctx, &runtimeapi.VersionRequest{Version: "v1"})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: cri runtime at %s: %v", runtime.ErrConnectionFailed, socketPath, err)
	}
	log.Debug().
		Str("socket", socketPath).
		Str("runtime", version.GetRuntimeName()).
		Str("version", version.GetRuntimeVersion()).
		Msg("cri backend connected")
	return c, nil
}

func (c *Client) List(ctx context.Context, kind runtime.Kind) ([]runtime.Record, error) {
	switch kind {
	case runtime.KindContainer:
		resp, err := c.rt.ListContainers(ctx, &runtimeapi.ListContainersRequest{})
		if err != nil {
			return nil, c.mapErr("list containers", kind, "", err)
		}
		records := make([]runtime.Record, len(resp.Containers))
		for i, ctr := range resp.Containers {
			records[i] = containerRecord(ctr)
		}
		return records, nil

	case runtime.KindImage:
		resp, err := c.img.ListImages(ctx, &runtimeapi.ListImagesRequest{})
		if err != nil {
			return nil, c.mapErr("list images", kind, "", err)
		}
		records := make([]runtime.Record, len(resp.Images))
		for i, img := range resp.Images {
			records[i] = imageRecord(img)
		}
		return records, nil
	}
	// Networks and volumes have no CRI surface. Fail loudly so the UI
	// can tell "unsupported" apart from "empty".
	return nil, &runtime.NotSupportedError{Backend: runtime.BackendCRI, Kind: kind}
}

func (c *Client) Inspect(ctx context.Context, kind runtime.Kind, id string) (string, error) {
	switch kind {
	case runtime.KindContainer:
		resp, err := c.rt.ContainerStatus(ctx, &runtimeapi.ContainerStatusRequest{
			ContainerId: id,
			Verbose:     true,
		})
		if err != nil {
			return "", c.mapErr("container status", kind, id, err)
		}
		return renderStatus(resp.GetStatus(), resp.GetInfo())

	case runtime.KindImage:
		resp, err := c.img.ImageStatus(ctx, &runtimeapi.ImageStatusRequest{
			Image:   &runtimeapi.ImageSpec{Image: id},
			Verbose: true,
		})
		if err != nil {
			return "", c.mapErr("image status", kind, id, err)
		}
		if resp.GetImage() == nil {
			return "", &runtime.NotFoundError{Kind: kind, ID: id}
		}
		return renderStatus(resp.GetImage(), resp.GetInfo())
	}
	return "", &runtime.NotSupportedError{Backend: runtime.BackendCRI, Kind: kind}
}

func (c *Client) Delete(ctx context.Context, kind runtime.Kind, id string) error {
	switch kind {
	case runtime.KindContainer:
		if _, err := c.rt.RemoveContainer(ctx, &runtimeapi.RemoveContainerRequest{ContainerId: id}); err != nil {
			return c.mapErr("remove container", kind, id, err)
		}
	case runtime.KindImage:
		if _, err := c.img.RemoveImage(ctx, &runtimeapi.RemoveImageRequest{
			Image: &runtimeapi.ImageSpec{Image: id},
		}); err != nil {
			return c.mapErr("remove image", kind, id, err)
		}
	default:
		return &runtime.NotSupportedError{Backend: runtime.BackendCRI, Kind: kind}
	}
	c.log.Info().Stringer("kind", kind).Str("id", id).Msg("resource deleted")
	return nil
}

// Logs is not served over the CRI socket; container logs live in files
// the kubelet owns.
func (c *Client) Logs(ctx context.Context, id string, follow bool) (io.ReadCloser, error) {
	return nil, &runtime.NotSupportedError{Backend: runtime.BackendCRI, Kind: runtime.KindContainer}
}

// Exec over CRI hands back a streaming URL for a separate server, which
// this client does not attach to.
func (c *Client) Exec(ctx context.Context, id string, cmd []string) (*runtime.ExecConn, error) {
	return nil, &runtime.NotSupportedError{Backend: runtime.BackendCRI, Kind: runtime.KindContainer}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) mapErr(op string, kind runtime.Kind, id string, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return &runtime.NotFoundError{Kind: kind, ID: id}
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %s", runtime.ErrPermissionDenied, op)
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s: %v", runtime.ErrConnectionFailed, op, err)
	case codes.Canceled:
		return fmt.Errorf("%w: %s", runtime.ErrCancelled, op)
	default:
		return &runtime.BackendError{Op: op, Err: err}
	}
}

func containerRecord(ctr *runtimeapi.Container) runtime.Record {
	name := "<unknown>"
	if md := ctr.GetMetadata(); md != nil && md.Name != "" {
		name = md.Name
	}
	img := ctr.GetImageRef()
	if spec := ctr.GetImage(); spec != nil && spec.Image != "" {
		img = spec.Image
	}
	return runtime.Record{
		ID:      ctr.GetId(),
		Name:    name,
		Status:  stateLabel(ctr.GetState()),
		Image:   img,
		Created: time.Unix(0, ctr.GetCreatedAt()).UTC(),
		Size:    runtime.SizeUnknown,
		Labels:  ctr.GetLabels(),
	}
}

func imageRecord(img *runtimeapi.Image) runtime.Record {
	name := "<none>"
	if len(img.GetRepoTags()) > 0 {
		name = img.GetRepoTags()[0]
	}
	return runtime.Record{
		ID:      shortImageID(img.GetId()),
		Name:    name,
		Created: time.Time{},
		Size:    int64(img.GetSize_()),
	}
}

// stateLabel maps the CRI state enum onto the shared status vocabulary
// used by the Docker backend.
func stateLabel(s runtimeapi.ContainerState) string {
	switch s {
	case runtimeapi.ContainerState_CONTAINER_CREATED:
		return "created"
	case runtimeapi.ContainerState_CONTAINER_RUNNING:
		return "running"
	case runtimeapi.ContainerState_CONTAINER_EXITED:
		return "exited"
	default:
		return "unknown"
	}
}

func shortImageID(id string) string {
	if i := strings.IndexByte(id, ':'); i >= 0 {
		id = id[i+1:]
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

// renderStatus merges a status message with its verbose info map into
// one indented JSON document. Info values are usually JSON already, so
// they are inlined raw when they parse.
func renderStatus(msg any, info map[string]string) (string, error) {
	doc := map[string]any{"status": msg}
	if len(info) > 0 {
		inlined := make(map[string]any, len(info))
		for k, v := range info {
			var raw json.RawMessage
			if json.Unmarshal([]byte(v), &raw) == nil {
				inlined[k] = raw
			} else {
				inlined[k] = v
			}
		}
		doc["info"] = inlined
	}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render status document: %w", err)
	}
	return string(body), nil
}
