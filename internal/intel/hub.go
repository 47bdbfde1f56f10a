// Package intel is the inter-session intelligence hub: broadcast messages,
// a shared scratchpad and file activity tracking with conflict detection.
// All state is in memory and lost on restart.
package intel

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Hub holds the shared state. Each table has its own lock so a burst of
// file reports never stalls broadcast readers.
type Hub struct {
	msgMu    sync.RWMutex
	messages []BroadcastMessage

	padMu      sync.RWMutex
	scratchpad []ScratchpadEntry

	fileMu sync.RWMutex
	files  map[string][]FileActivity

	now func() time.Time
	log *slog.Logger
}

type Option func(*Hub)

// WithClock overrides the time source used for timestamps and TTL checks.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.log = l }
}

func New(opts ...Option) *Hub {
	h := &Hub{
		files: make(map[string][]FileActivity),
		now:   time.Now,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) timestamp() string {
	return h.now().UTC().Format(time.RFC3339Nano)
}

// AddBroadcast validates and stores a broadcast, evicting the oldest
// messages beyond MaxMessages.
func (h *Hub) AddBroadcast(req BroadcastRequest) (BroadcastMessage, error) {
	if err := validateBroadcast(&req); err != nil {
		return BroadcastMessage{}, err
	}

	msg := BroadcastMessage{
		ID:         uuid.NewString(),
		SessionID:  req.SessionID,
		InstanceID: req.InstanceID,
		Category:   req.Category,
		Message:    req.Message,
		Metadata:   req.Metadata,
		Timestamp:  h.timestamp(),
	}

	h.msgMu.Lock()
	h.messages = appendBounded(h.messages, msg, MaxMessages)
	h.msgMu.Unlock()

	return msg, nil
}

// MessagesFor returns every stored broadcast not sent by sessionID, oldest first.
func (h *Hub) MessagesFor(sessionID uint32) []BroadcastMessage {
	h.msgMu.RLock()
	defer h.msgMu.RUnlock()

	out := make([]BroadcastMessage, 0, len(h.messages))
	for _, m := range h.messages {
		if m.SessionID != sessionID {
			out = append(out, m)
		}
	}
	return out
}

// AllMessages returns a snapshot of every stored broadcast.
func (h *Hub) AllMessages() []BroadcastMessage {
	h.msgMu.RLock()
	defer h.msgMu.RUnlock()
	return append(make([]BroadcastMessage, 0, len(h.messages)), h.messages...)
}

func (h *Hub) WriteScratchpad(req ScratchpadWriteRequest) (ScratchpadEntry, error) {
	if err := validateScratchpad(&req); err != nil {
		return ScratchpadEntry{}, err
	}

	entry := ScratchpadEntry{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		Category:  req.Category,
		Title:     req.Title,
		Content:   req.Content,
		Timestamp: h.timestamp(),
	}

	h.padMu.Lock()
	h.scratchpad = appendBounded(h.scratchpad, entry, MaxScratchpad)
	h.padMu.Unlock()

	return entry, nil
}

func (h *Hub) ReadScratchpad() []ScratchpadEntry {
	h.padMu.RLock()
	defer h.padMu.RUnlock()
	return append(make([]ScratchpadEntry, 0, len(h.scratchpad)), h.scratchpad...)
}

func (h *Hub) ClearScratchpad() {
	h.padMu.Lock()
	h.scratchpad = nil
	h.padMu.Unlock()
}

// appendBounded appends v and drops the oldest entries beyond limit.
func appendBounded[T any](s []T, v T, limit int) []T {
	s = append(s, v)
	if excess := len(s) - limit; excess > 0 {
		// Copy down so the backing array does not grow without bound.
		n := copy(s, s[excess:])
		clear(s[n:])
		s = s[:n]
	}
	return s
}
