package engine

import (
	"github.com/warpcode/zinstall/pkg/backend"
)

// SessionState tracks per-process installation state: which backends have
// had their repository metadata refreshed, and which recipe ids have already
// been processed. It lives for the process lifetime and is owned by the
// Orchestrator; nothing persists across invocations.
type SessionState struct {
	refreshed map[backend.Backend]bool
	processed map[string]bool
}

// NewSessionState creates empty session state.
func NewSessionState() *SessionState {
	return &SessionState{
		refreshed: make(map[backend.Backend]bool),
		processed: make(map[string]bool),
	}
}

// Refreshed reports whether the backend's metadata was already refreshed
// this session.
func (s *SessionState) Refreshed(b backend.Backend) bool {
	return s.refreshed[b]
}

// MarkRefreshed records a completed metadata refresh.
func (s *SessionState) MarkRefreshed(b backend.Backend) {
	s.refreshed[b] = true
}

// Processed reports whether a recipe id was already handled this session.
func (s *SessionState) Processed(id string) bool {
	return s.processed[id]
}

// MarkProcessed records a handled recipe id.
func (s *SessionState) MarkProcessed(id string) {
	s.processed[id] = true
}
