package runtime

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestParseKind(t *testing.T) {
	testCases := []struct {
		token   string
		want    Kind
		wantErr bool
	}{
		{"containers", KindContainer, false},
		{"cont", KindContainer, false},
		{"con", KindContainer, false},
		{"images", KindImage, false},
		{"img", KindImage, false},
		{"networks", KindNetwork, false},
		{"net", KindNetwork, false},
		{"volumes", KindVolume, false},
		{"vol", KindVolume, false},
		{"compose", KindCompose, false},
		{"com", KindCompose, false},
		{"  Images ", KindImage, false},
		{"", 0, true},
		{"pods", 0, true},
		{"c", 0, true}, // ambiguous: containers or compose
		{"co", 0, true},
	}

	for _, tc := range testCases {
		got, err := ParseKind(tc.token)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseKind(%q): expected error, got %v", tc.token, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseKind(%q) failed: %v", tc.token, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseKind(%q) = %v, want %v", tc.token, got, tc.want)
		}
	}
}

func TestErrorTaxonomy(t *testing.T) {
	var nse error = &NotSupportedError{Backend: BackendCRI, Kind: KindNetwork}
	if !IsNotSupported(nse) {
		t.Error("NotSupportedError not recognized")
	}
	if !strings.Contains(nse.Error(), "cri backend does not support networks") {
		t.Errorf("unexpected message %q", nse.Error())
	}

	var nfe error = &NotFoundError{Kind: KindContainer, ID: "abc"}
	if !IsNotFound(nfe) {
		t.Error("NotFoundError not recognized")
	}
	if nfe.Error() != "no such container: abc" {
		t.Errorf("unexpected message %q", nfe.Error())
	}
	if IsNotFound(nse) || IsNotSupported(nfe) {
		t.Error("taxonomy helpers must not cross-match")
	}

	// Wrapped causes stay reachable through errors.Is.
	cause := errors.New("boom")
	be := &BackendError{Op: "list containers", Err: cause}
	if !errors.Is(be, cause) {
		t.Error("BackendError should unwrap to its cause")
	}

	wrapped := fmt.Errorf("dial: %w", ErrConnectionFailed)
	if !errors.Is(wrapped, ErrConnectionFailed) {
		t.Error("sentinel lost through wrapping")
	}
}
