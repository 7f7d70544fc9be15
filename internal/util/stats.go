package util

import (
	"fmt"
	"sync/atomic"
)

// Stats counts chat traffic for one session. The zero value is ready to use
// and all methods are safe for concurrent use.
type Stats struct {
	MessagesSent atomic.Int64
	MessagesRecv atomic.Int64
	Malformed    atomic.Int64 // inbound payloads that failed to decode
	BytesSent    atomic.Int64 // cumulative bytes written to the data channel
	BytesRecv    atomic.Int64 // cumulative bytes read from the data channel
}

func (s *Stats) AddSent(n int) {
	s.MessagesSent.Add(1)
	s.BytesSent.Add(int64(n))
}

func (s *Stats) AddRecv(n int) {
	s.MessagesRecv.Add(1)
	s.BytesRecv.Add(int64(n))
}

func (s *Stats) AddMalformed(n int) {
	s.Malformed.Add(1)
	s.BytesRecv.Add(int64(n))
}

// Reset zeroes every counter.
func (s *Stats) Reset() {
	s.MessagesSent.Store(0)
	s.MessagesRecv.Store(0)
	s.Malformed.Store(0)
	s.BytesSent.Store(0)
	s.BytesRecv.Store(0)
}

// Summary returns a one-line report for the logger.
func (s *Stats) Summary() string {
	return fmt.Sprintf("Sent: %3d msg %s | Recv: %3d msg %s | Malformed: %d",
		s.MessagesSent.Load(),
		formatBytes(float64(s.BytesSent.Load())),
		s.MessagesRecv.Load(),
		formatBytes(float64(s.BytesRecv.Load())),
		s.Malformed.Load(),
	)
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}
