package app

import (
	"time"

	"github.com/google/uuid"
)

// Session tracks one CLI invocation. Its ID tags every log line written
// while the command runs.
type Session struct {
	ID      string
	Command string
	Status  string // "success" or "error"
	Started time.Time
}

// NewSession starts a session for command at now. The ID is the start time
// plus a short random suffix so that concurrent invocations stay apart.
func NewSession(command string, now time.Time) *Session {
	return &Session{
		ID:      now.UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8],
		Command: command,
		Status:  "success",
		Started: now,
	}
}

// Fail marks the session as failed.
func (s *Session) Fail() {
	s.Status = "error"
}

// Failed reports whether Fail was called.
func (s *Session) Failed() bool {
	return s.Status == "error"
}
