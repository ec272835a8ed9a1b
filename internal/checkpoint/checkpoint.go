// Package checkpoint persists per-thread conversation state.
//
// One checkpoint per thread, replaced wholesale on every save. The row lock
// inside Save plus the in-process thread locks give strict turn serialization:
// a reader always sees a fully written history, never a partial one.
package checkpoint

import (
	"errors"
	"time"
)

// ErrPersistence indicates the backing store failed. Callers branch on it
// with errors.Is; the wrapped cause carries the detail.
var ErrPersistence = errors.New("checkpoint persistence failed")

// Speakers in a conversation turn.
const (
	SpeakerUser      = "user"
	SpeakerAssistant = "assistant"
	SpeakerTool      = "tool"
)

// Turn is a single utterance in a thread history.
type Turn struct {
	Speaker string    `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// State is the full conversation state of one thread.
type State struct {
	ThreadID  string
	History   []Turn
	UpdatedAt time.Time
}

// Append returns a copy of the state with the turn added. The receiver is
// not modified; orchestration code builds the new state and saves it only
// after the turn completed.
func (s State) Append(turns ...Turn) State {
	history := make([]Turn, 0, len(s.History)+len(turns))
	history = append(history, s.History...)
	history = append(history, turns...)
	return State{
		ThreadID:  s.ThreadID,
		History:   history,
		UpdatedAt: s.UpdatedAt,
	}
}
