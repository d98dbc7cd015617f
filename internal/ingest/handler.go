// Package ingest accepts newline-delimited JSON sample feeds over TCP and
// routes them into sessions.
package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/chrissnell/snowrecorder/internal/session"
	"github.com/chrissnell/snowrecorder/internal/types"
	"go.uber.org/zap"
)

// Message types
const (
	TypeStart  = "start"
	TypeSample = "sample"
	TypePause  = "pause"
	TypeResume = "resume"
	TypeStop   = "stop"
)

// Message is one line of the feed. Time applies to control messages and
// defaults to the receive time.
type Message struct {
	Type    string        `json:"type"`
	Session string        `json:"session"`
	Time    *time.Time    `json:"time,omitempty"`
	Sample  *types.Sample `json:"sample,omitempty"`
}

// Reply is written back for every control message and for failed samples
type Reply struct {
	OK      bool                  `json:"ok"`
	Type    string                `json:"type,omitempty"`
	Session string                `json:"session,omitempty"`
	Error   string                `json:"error,omitempty"`
	Summary *types.SessionSummary `json:"summary,omitempty"`
}

// Sessions resolves the sessions a feed talks to
type Sessions interface {
	Start(id string, at time.Time) (*session.Session, error)
	Get(id string) (*session.Session, error)
}

// Handler applies feed messages to sessions. It is safe for concurrent use.
type Handler struct {
	sessions Sessions
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// NewHandler creates a Handler
func NewHandler(sessions Sessions, logger *zap.SugaredLogger) *Handler {
	return &Handler{sessions: sessions, logger: logger, now: time.Now}
}

// Handle processes one line. The second result reports whether the reply
// should be sent; successful samples are not acknowledged.
func (h *Handler) Handle(line []byte) (Reply, bool) {
	if len(line) == 0 {
		return Reply{}, false
	}

	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return Reply{Error: fmt.Sprintf("malformed message: %v", err)}, true
	}

	at := h.now()
	if msg.Time != nil {
		at = *msg.Time
	}

	reply := Reply{Type: msg.Type, Session: msg.Session}
	switch msg.Type {
	case TypeStart:
		s, err := h.sessions.Start(msg.Session, at)
		if err != nil {
			return failed(reply, err), true
		}
		reply.Session = s.ID()

	case TypeSample:
		if msg.Sample == nil {
			return failed(reply, fmt.Errorf("sample message without sample")), true
		}
		s, err := h.sessions.Get(msg.Session)
		if err != nil {
			return failed(reply, err), true
		}
		if err := s.Ingest(*msg.Sample); err != nil {
			return failed(reply, err), true
		}
		return reply, false

	case TypePause, TypeResume:
		s, err := h.sessions.Get(msg.Session)
		if err != nil {
			return failed(reply, err), true
		}
		if msg.Type == TypePause {
			err = s.Pause(at)
		} else {
			err = s.Resume(at)
		}
		if err != nil {
			return failed(reply, err), true
		}

	case TypeStop:
		s, err := h.sessions.Get(msg.Session)
		if err != nil {
			return failed(reply, err), true
		}
		sum, err := s.Stop(at)
		if err != nil {
			return failed(reply, err), true
		}
		reply.Summary = &sum

	default:
		h.logger.Warnw("ignoring unknown message type", "type", msg.Type, "session", msg.Session)
		return Reply{}, false
	}

	reply.OK = true
	return reply, true
}

func failed(r Reply, err error) Reply {
	r.OK = false
	r.Error = err.Error()
	return r
}
