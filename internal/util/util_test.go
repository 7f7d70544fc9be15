package util

import (
	"strings"
	"testing"
)

func TestFingerprint(t *testing.T) {
	// FNV-32a offset basis for the empty input.
	if got := Fingerprint(""); got != "811c9dc5" {
		t.Errorf("Fingerprint(\"\") = %s, want 811c9dc5", got)
	}

	a := Fingerprint("v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\n")
	b := Fingerprint("v=0\r\no=- 1 2 IN IP4 127.0.0.2\r\n")
	if a == b {
		t.Errorf("different SDPs share fingerprint %s", a)
	}
	if len(a) != 8 {
		t.Errorf("fingerprint %q is not 8 hex digits", a)
	}
	if a != Fingerprint("v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\n") {
		t.Error("fingerprint is not deterministic")
	}
}

func TestFormatBytes(t *testing.T) {
	testCases := []struct {
		in   float64
		want string
	}{
		{0, " 0.0   B"},
		{99, "99.0   B"},
		{1536, " 1.5 KiB"},
		{100 * 1024, " 0.1 MiB"},
	}

	for _, tc := range testCases {
		got := formatBytes(tc.in)
		if got != tc.want {
			t.Errorf("formatBytes(%v) = %q, want %q", tc.in, got, tc.want)
		}
		if len(got) != 8 {
			t.Errorf("formatBytes(%v) = %q is %d chars, want 8", tc.in, got, len(got))
		}
	}
}

func TestStats(t *testing.T) {
	var s Stats
	s.AddSent(16)
	s.AddSent(20)
	s.AddRecv(30)
	s.AddMalformed(4)

	if got := s.MessagesSent.Load(); got != 2 {
		t.Errorf("MessagesSent = %d, want 2", got)
	}
	if got := s.BytesSent.Load(); got != 36 {
		t.Errorf("BytesSent = %d, want 36", got)
	}
	if got := s.BytesRecv.Load(); got != 34 {
		t.Errorf("BytesRecv = %d, want 34", got)
	}

	summary := s.Summary()
	for _, want := range []string{"Sent:   2 msg", "Recv:   1 msg", "Malformed: 1"} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary() = %q, missing %q", summary, want)
		}
	}

	s.Reset()
	if s.MessagesSent.Load() != 0 || s.BytesRecv.Load() != 0 || s.Malformed.Load() != 0 {
		t.Error("Reset left counters non-zero")
	}
}
