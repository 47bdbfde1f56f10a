package intel

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// MaxMessages bounds the broadcast ring buffer.
	MaxMessages = 200
	// MaxScratchpad bounds the scratchpad ring buffer.
	MaxScratchpad = 50
	// FileActivityTTL is how long a file activity record counts towards conflicts.
	FileActivityTTL = 300 * time.Second

	MaxMessageLen  = 10_000
	MaxTitleLen    = 256
	MaxContentLen  = 100_000
	MaxFilePathLen = 4_096
)

// Event names under which hub mutations are announced.
const (
	EventBroadcast    = "intel:broadcast"
	EventFileConflict = "intel:file-conflict"
	EventScratchpad   = "intel:scratchpad"
)

// Closed value sets accepted by the hub.
var (
	BroadcastCategories  = []string{"discovery", "warning", "knowledge", "info"}
	ScratchpadCategories = []string{"architecture", "api", "decision", "note"}
	FileActions          = []string{"editing", "created", "deleted"}
)

// BroadcastMessage is a message sent from one session to all others.
type BroadcastMessage struct {
	ID         string          `json:"id"`
	SessionID  uint32          `json:"session_id"`
	InstanceID string          `json:"instance_id"`
	Category   string          `json:"category"`
	Message    string          `json:"message"`
	Metadata   json.RawMessage `json:"metadata"`
	Timestamp  string          `json:"timestamp"`
}

// FileActivity records one session touching one file.
type FileActivity struct {
	SessionID uint32 `json:"session_id"`
	FilePath  string `json:"file_path"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

// FileConflict is derived from FileActivity; it is never stored.
type FileConflict struct {
	FilePath string         `json:"file_path"`
	Sessions []uint32       `json:"sessions"`
	Actions  []FileActivity `json:"actions"`
}

// ScratchpadEntry is a shared note visible to every session.
type ScratchpadEntry struct {
	ID        string `json:"id"`
	SessionID uint32 `json:"session_id"`
	Category  string `json:"category"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type BroadcastRequest struct {
	SessionID  uint32          `json:"session_id"`
	InstanceID string          `json:"instance_id"`
	Category   string          `json:"category"`
	Message    string          `json:"message"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

type FileActivityRequest struct {
	SessionID  uint32 `json:"session_id"`
	InstanceID string `json:"instance_id"`
	FilePath   string `json:"file_path"`
	Action     string `json:"action"`
}

type ScratchpadWriteRequest struct {
	SessionID  uint32 `json:"session_id"`
	InstanceID string `json:"instance_id"`
	Category   string `json:"category"`
	Title      string `json:"title"`
	Content    string `json:"content"`
}

// ValidationError names the offending request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
