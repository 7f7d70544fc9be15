package app

import (
	"encoding/json"
	"strings"
)

// maxPasteLines bounds how many lines are held for one envelope.
const maxPasteLines = 512

// pasteBuffer joins an envelope pasted across several lines. A line that
// opens a JSON object is held until the object is complete. Anything else,
// base64 included, is taken as a whole envelope.
type pasteBuffer struct {
	lines []string
}

func (p *pasteBuffer) active() bool { return len(p.lines) > 0 }
func (p *pasteBuffer) held() int    { return len(p.lines) }
func (p *pasteBuffer) reset()       { p.lines = nil }

// add returns the envelope once it is complete.
func (p *pasteBuffer) add(line string) (string, bool) {
	if !p.active() {
		text := strings.TrimSpace(line)
		if !strings.HasPrefix(text, "{") || json.Valid([]byte(text)) {
			return line, true
		}
	}

	p.lines = append(p.lines, line)
	joined := strings.Join(p.lines, "\n")
	if json.Valid([]byte(joined)) || len(p.lines) >= maxPasteLines {
		p.reset()
		return joined, true
	}
	return "", false
}
