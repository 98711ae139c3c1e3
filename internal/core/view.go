// Package core holds the per-view projection logic: filtering, sorting
// and selection over the latest resource snapshot.
package core

import (
	"sort"
	"strings"

	"github.com/doggy-tui/doggy/internal/runtime"
)

// Column identifies a sortable column. The four columns map onto the
// F1..F4 keys in list views.
type Column int

const (
	ColName Column = iota
	ColStatus
	ColCreated
	ColSize
)

func (c Column) String() string {
	switch c {
	case ColName:
		return "name"
	case ColStatus:
		return "status"
	case ColCreated:
		return "created"
	case ColSize:
		return "size"
	default:
		return "unknown"
	}
}

// View is the mutable list state for one resource kind. The record list
// is replaced atomically by SetRecords; Projection derives the visible
// rows without mutating it.
type View struct {
	Kind        runtime.Kind
	Filter      string
	SortBy      Column
	Desc        bool
	ShowStopped bool // containers only: stopped rows hidden unless set

	records  []runtime.Record
	selected int // index into the projection, -1 when empty
}

// NewView creates an empty view sorted by name ascending.
func NewView(kind runtime.Kind) *View {
	return &View{Kind: kind, SortBy: ColName, selected: -1}
}

// SetRecords replaces the full record list with a fresh snapshot and
// re-validates the selection against the new projection.
func (v *View) SetRecords(records []runtime.Record) {
	v.records = records
	v.clampSelection()
}

// Records returns the unprojected snapshot.
func (v *View) Records() []runtime.Record {
	return v.records
}

// SetFilter replaces the filter substring and re-validates selection.
func (v *View) SetFilter(s string) {
	v.Filter = s
	v.clampSelection()
}

// ToggleStopped flips stopped-container visibility.
func (v *View) ToggleStopped() {
	v.ShowStopped = !v.ShowStopped
	v.clampSelection()
}

// ToggleSort selects a sort column; selecting the active column again
// reverses direction.
func (v *View) ToggleSort(col Column) {
	if v.SortBy == col {
		v.Desc = !v.Desc
	} else {
		v.SortBy = col
		v.Desc = false
	}
}

// Projection returns the filtered, sorted rows the renderer should show.
// The sort is stable, with id as a final deterministic tie-break.
func (v *View) Projection() []runtime.Record {
	out := make([]runtime.Record, 0, len(v.records))
	needle := strings.ToLower(v.Filter)
	for _, r := range v.records {
		if v.Kind == runtime.KindContainer && !v.ShowStopped && !isRunning(r.Status) {
			continue
		}
		if needle != "" && !v.matches(r, needle) {
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		var less, eq bool
		switch v.SortBy {
		case ColStatus:
			less, eq = a.Status < b.Status, a.Status == b.Status
		case ColCreated:
			less, eq = a.Created.Before(b.Created), a.Created.Equal(b.Created)
		case ColSize:
			if v.Kind == runtime.KindContainer {
				// Containers report no size figure; the fourth column
				// shows the image instead, so F4 sorts that.
				less, eq = a.Image < b.Image, a.Image == b.Image
			} else {
				less, eq = a.Size < b.Size, a.Size == b.Size
			}
		default:
			less, eq = a.Name < b.Name, a.Name == b.Name
		}
		if eq {
			return a.ID < b.ID
		}
		if v.Desc {
			return !less
		}
		return less
	})
	return out
}

// matches applies the case-insensitive substring filter. Container rows
// also match on status so ":containers /exited" works.
func (v *View) matches(r runtime.Record, needle string) bool {
	if strings.Contains(strings.ToLower(r.Name), needle) {
		return true
	}
	if v.Kind == runtime.KindContainer {
		return strings.Contains(strings.ToLower(r.Status), needle)
	}
	return false
}

// Selected returns the selection index within the projection, -1 when
// the projection is empty.
func (v *View) Selected() int {
	return v.selected
}

// SelectedRecord returns the record under the cursor.
func (v *View) SelectedRecord() (runtime.Record, bool) {
	proj := v.Projection()
	if v.selected < 0 || v.selected >= len(proj) {
		return runtime.Record{}, false
	}
	return proj[v.selected], true
}

// MoveSelection shifts the cursor by delta, clamped to the projection.
func (v *View) MoveSelection(delta int) {
	n := len(v.Projection())
	if n == 0 {
		v.selected = -1
		return
	}
	v.selected += delta
	if v.selected < 0 {
		v.selected = 0
	}
	if v.selected >= n {
		v.selected = n - 1
	}
}

// clampSelection re-validates the cursor after any change that can
// shrink or grow the projection.
func (v *View) clampSelection() {
	n := len(v.Projection())
	switch {
	case n == 0:
		v.selected = -1
	case v.selected < 0:
		v.selected = 0
	case v.selected >= n:
		v.selected = n - 1
	}
}

func isRunning(status string) bool {
	switch status {
	case "running", "restarting", "paused", "removing":
		return true
	}
	return false
}
