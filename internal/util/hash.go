// Package util provides shared utility functions.
package util

import (
	"fmt"
	"hash/fnv"
)

// Fingerprint computes a short FNV-32a digest of an SDP blob. Both peers log
// it so the humans relaying an envelope can compare it by eye; it is not a
// security check.
func Fingerprint(sdp string) string {
	h := fnv.New32a()
	h.Write([]byte(sdp))
	return fmt.Sprintf("%08x", h.Sum32())
}
