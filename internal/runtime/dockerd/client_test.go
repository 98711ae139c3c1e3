package dockerd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/errdefs"
	"github.com/rs/zerolog"

	"github.com/doggy-tui/doggy/internal/runtime"
)

func TestContainerRecord(t *testing.T) {
	r := containerRecord(
		"abc123",
		[]string{"/web", "/alias"},
		"nginx:latest@sha256:deadbeef",
		"running",
		1700000000,
		map[string]string{"app": "web"},
	)

	if r.Name != "web" {
		t.Errorf("expected leading slash stripped, got %q", r.Name)
	}
	if r.Image != "nginx:latest" {
		t.Errorf("expected digest dropped from image, got %q", r.Image)
	}
	if r.Status != "running" {
		t.Errorf("unexpected status %q", r.Status)
	}
	if r.Created != time.Unix(1700000000, 0).UTC() {
		t.Errorf("unexpected created time %v", r.Created)
	}
	if r.Size != runtime.SizeUnknown {
		t.Errorf("containers report no size, got %d", r.Size)
	}
	if r.Labels["app"] != "web" {
		t.Error("labels not carried through")
	}
}

func TestContainerRecord_NoNames(t *testing.T) {
	r := containerRecord("abc", nil, "img", "exited", 0, nil)
	if r.Name != "" {
		t.Errorf("expected empty name, got %q", r.Name)
	}
}

func TestImageRecord(t *testing.T) {
	r := imageRecord("sha256:0123456789abcdef0123", []string{"redis:7", "redis:latest"}, 1700000000, 4096, nil)
	if r.ID != "0123456789ab" {
		t.Errorf("expected short id, got %q", r.ID)
	}
	if r.Name != "redis:7" {
		t.Errorf("expected first repo tag, got %q", r.Name)
	}
	if r.Size != 4096 {
		t.Errorf("unexpected size %d", r.Size)
	}

	dangling := imageRecord("sha256:ffff", nil, 0, 0, nil)
	if dangling.Name != "<none>" {
		t.Errorf("dangling image should render <none>, got %q", dangling.Name)
	}
	untagged := imageRecord("sha256:ffff", []string{"<none>:<none>"}, 0, 0, nil)
	if untagged.Name != "<none>" {
		t.Errorf("untagged image should render <none>, got %q", untagged.Name)
	}
}

func TestVolumeRecord(t *testing.T) {
	vol := &volume.Volume{
		Name:      "data",
		Driver:    "local",
		CreatedAt: "2024-05-01T10:00:00Z",
		Labels:    map[string]string{"keep": "yes"},
	}
	r := volumeRecord(vol)
	if r.ID != "data" || r.Name != "data" {
		t.Errorf("volumes are addressed by name, got id=%q name=%q", r.ID, r.Name)
	}
	if r.Status != "local" {
		t.Errorf("expected driver as status, got %q", r.Status)
	}
	if r.Size != runtime.SizeUnknown {
		t.Errorf("no usage data means unknown size, got %d", r.Size)
	}
	if r.Created.IsZero() {
		t.Error("created timestamp not parsed")
	}

	vol.UsageData = &volume.UsageData{Size: 2048}
	if got := volumeRecord(vol).Size; got != 2048 {
		t.Errorf("usage data ignored, got %d", got)
	}
}

func TestShortImageID(t *testing.T) {
	tests := []struct{ in, want string }{
		{"sha256:0123456789abcdef", "0123456789ab"},
		{"0123456789abcdef", "0123456789ab"},
		{"short", "short"},
		{"sha256:abc", "abc"},
	}
	for _, tt := range tests {
		if got := shortImageID(tt.in); got != tt.want {
			t.Errorf("shortImageID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func composeCtr(id, name, status, project, service string, created int64) runtime.Record {
	labels := map[string]string{}
	if project != "" {
		labels[composeProjectLabel] = project
		labels[composeServiceLabel] = service
	}
	return containerRecord(id, []string{"/" + name}, "img:1", status, created, labels)
}

func TestComposeProjects(t *testing.T) {
	members := []runtime.Record{
		composeCtr("1", "shop-web-1", "running", "shop", "web", 100),
		composeCtr("2", "shop-db-1", "exited", "shop", "db", 50),
		composeCtr("3", "standalone", "running", "", "", 10),
		composeCtr("4", "batch-job-1", "running", "batch", "job", 200),
	}

	projects := composeProjects(members)
	if len(projects) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(projects))
	}
	if projects[0].Name != "batch" || projects[1].Name != "shop" {
		t.Errorf("projects not sorted by name: %v, %v", projects[0].Name, projects[1].Name)
	}

	shop := projects[1]
	if shop.ID != "shop" {
		t.Errorf("projects are addressed by name, got id %q", shop.ID)
	}
	if shop.Status != "1/2 running" {
		t.Errorf("unexpected status %q", shop.Status)
	}
	if !shop.Created.Equal(time.Unix(50, 0).UTC()) {
		t.Errorf("created should be the oldest member, got %v", shop.Created)
	}
	if shop.Size != runtime.SizeUnknown {
		t.Errorf("projects report no size, got %d", shop.Size)
	}
}

func TestProjectDocument(t *testing.T) {
	members := []runtime.Record{
		composeCtr("1", "shop-web-1", "running", "shop", "web", 100),
		composeCtr("2", "batch-job-1", "running", "batch", "job", 200),
	}

	doc := projectDocument("shop", members)
	if doc == nil {
		t.Fatal("expected a document for a labelled project")
	}
	list, ok := doc["containers"].([]composeMember)
	if !ok || len(list) != 1 {
		t.Fatalf("expected one member container, got %#v", doc["containers"])
	}
	if list[0].Name != "shop-web-1" || list[0].Service != "web" {
		t.Errorf("unexpected member %+v", list[0])
	}

	if projectDocument("gone", members) != nil {
		t.Error("unknown project should yield no document")
	}
}

func TestMapErr_Taxonomy(t *testing.T) {
	c := &Client{log: zerolog.Nop()}

	err := c.mapErr("inspect", runtime.KindContainer, "gone", errdefs.NotFound(errors.New("nope")))
	if !runtime.IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}

	err = c.mapErr("delete", runtime.KindImage, "x", errdefs.Forbidden(errors.New("denied")))
	if !errors.Is(err, runtime.ErrPermissionDenied) {
		t.Errorf("expected permission denied, got %v", err)
	}

	dialErr := &net.OpError{Op: "dial", Net: "unix", Err: errors.New("connection refused")}
	err = c.mapErr("list", runtime.KindContainer, "", fmt.Errorf("cannot connect: %w", dialErr))
	if !errors.Is(err, runtime.ErrConnectionFailed) {
		t.Errorf("expected connection failure, got %v", err)
	}

	err = c.mapErr("list", runtime.KindContainer, "", fmt.Errorf("request: %w", context.DeadlineExceeded))
	if !errors.Is(err, runtime.ErrConnectionFailed) {
		t.Errorf("expected timeout to read as connection failure, got %v", err)
	}

	cause := errors.New("daemon exploded")
	err = c.mapErr("list", runtime.KindContainer, "", cause)
	if !errors.Is(err, cause) {
		t.Errorf("backend error should wrap the cause, got %v", err)
	}
}
