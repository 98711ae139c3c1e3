package tui

import (
	"regexp"
	"strings"
)

// Container output arrives with whatever escape sequences the process
// emitted. Rendering those inside the viewport would move the cursor,
// clear lines or retitle the terminal, so everything but plain text is
// stripped before it reaches the screen.

var (
	// CSI: ESC [ ... final byte in @-~ (cursor moves, SGR, erase).
	reCSI = regexp.MustCompile("\x1b\x5b[0-?]*[ -/]*[@-~]")

	// OSC: ESC ] ... (BEL | ST) — window titles, hyperlinks.
	reOSC = regexp.MustCompile("\x1b\x5d[\x20-\x7e]*(?:\x07|\x1b\\\\)")

	// DCS/SOS/PM/APC: ESC P/X/^/_ ... ST.
	reDCSLike = regexp.MustCompile("\x1b[P^_X](?s:.*?)(?:\x1b\\\\|\x07)")

	// Bare ESC+char sequences (save/restore cursor and friends).
	reSingleESC = regexp.MustCompile("\x1b[0-9A-Za-z]")
)

// sanitizeStream cleans a chunk of log or exec output for the viewport.
// Tabs and newlines survive; carriage returns become newlines so shell
// prompts and progress bars stack instead of overwriting. Idempotent.
func sanitizeStream(s string) string {
	if s == "" {
		return s
	}

	// Blocks first, they may contain CSI-like bytes inside.
	s = reOSC.ReplaceAllString(s, "")
	s = reDCSLike.ReplaceAllString(s, "")
	s = reCSI.ReplaceAllString(s, "")
	s = reSingleESC.ReplaceAllString(s, "")

	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\b", "")

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch < 0x20 && ch != '\t' && ch != '\n' {
			b.WriteByte(' ')
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}
