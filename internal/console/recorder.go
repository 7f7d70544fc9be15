package console

import (
	"fmt"
	"strings"
	"sync"
)

var _ Console = (*Recorder)(nil)

// Line is one recorded console write.
type Line struct {
	Level Level
	Text  string
}

// Recorder keeps every line in memory. Tests use it in place of a terminal.
type Recorder struct {
	mu    sync.Mutex
	lines []Line
}

func (r *Recorder) add(level Level, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, Line{Level: level, Text: text})
}

func (r *Recorder) Debugf(format string, args ...any) {
	r.add(LevelDebug, fmt.Sprintf(format, args...))
}

func (r *Recorder) Infof(format string, args ...any) {
	r.add(LevelInfo, fmt.Sprintf(format, args...))
}

func (r *Recorder) Errorf(format string, args ...any) {
	r.add(LevelError, fmt.Sprintf(format, args...))
}

func (r *Recorder) Printf(format string, args ...any) {
	r.add(LevelPlain, fmt.Sprintf(format, args...))
}

func (r *Recorder) Artifact(text string) {
	r.add(LevelArtifact, text)
}

func (r *Recorder) Remotef(format string, args ...any) {
	r.add(LevelRemote, fmt.Sprintf(format, args...))
}

// Lines returns a copy of everything recorded so far.
func (r *Recorder) Lines() []Line {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Line, len(r.lines))
	copy(out, r.lines)
	return out
}

// Filter returns the texts recorded at level, in order.
func (r *Recorder) Filter(level Level) []string {
	var out []string
	for _, l := range r.Lines() {
		if l.Level == level {
			out = append(out, l.Text)
		}
	}
	return out
}

// Count returns how many lines were recorded at level.
func (r *Recorder) Count(level Level) int {
	return len(r.Filter(level))
}

// Contains reports whether some line at level contains substr.
func (r *Recorder) Contains(level Level, substr string) bool {
	for _, text := range r.Filter(level) {
		if strings.Contains(text, substr) {
			return true
		}
	}
	return false
}

// Reset discards all recorded lines.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = nil
}
