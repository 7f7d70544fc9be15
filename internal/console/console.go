// Package console is the write-only output sink used by the signaling core
// and the chat session.
package console

// Console receives every user-visible line. Implementations must be safe
// for concurrent use.
type Console interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
	// Printf writes a plain, undecorated line.
	Printf(format string, args ...any)
	// Artifact writes an envelope the user must copy to the other peer.
	Artifact(text string)
	// Remotef writes a line received from the peer.
	Remotef(format string, args ...any)
}

// Level tags a recorded line.
type Level string

const (
	LevelDebug    Level = "debug"
	LevelInfo     Level = "info"
	LevelError    Level = "error"
	LevelPlain    Level = "plain"
	LevelArtifact Level = "artifact"
	LevelRemote   Level = "remote"
)
