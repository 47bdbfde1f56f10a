package intel

import (
	"slices"
	"sort"
	"time"
)

// ReportFile records a session's activity on a file and returns the
// conflict for that path, if any (zero or one element).
func (h *Hub) ReportFile(req FileActivityRequest) ([]FileConflict, error) {
	if err := validateFileActivity(&req); err != nil {
		return nil, err
	}

	now := h.now()
	activity := FileActivity{
		SessionID: req.SessionID,
		FilePath:  req.FilePath,
		Action:    req.Action,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}

	h.fileMu.Lock()
	defer h.fileMu.Unlock()

	entries := h.recent(h.files[req.FilePath], now)
	entries = append(entries, activity)
	h.files[req.FilePath] = entries

	conflicts := make([]FileConflict, 0, 1)
	if c, ok := detectConflict(req.FilePath, entries); ok {
		conflicts = append(conflicts, c)
	}
	return conflicts, nil
}

// AllConflicts sweeps every tracked path and returns those with activity
// from at least two sessions inside the TTL, ordered by path.
func (h *Hub) AllConflicts() []FileConflict {
	now := h.now()

	h.fileMu.RLock()
	defer h.fileMu.RUnlock()

	out := make([]FileConflict, 0)
	for path, entries := range h.files {
		recent := h.recent(slices.Clone(entries), now)
		if c, ok := detectConflict(path, recent); ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FilePath < out[j].FilePath })
	return out
}

// recent filters entries in place down to those younger than the TTL.
// Entries whose timestamp does not parse are kept so nothing is dropped
// silently.
func (h *Hub) recent(entries []FileActivity, now time.Time) []FileActivity {
	kept := entries[:0]
	for _, e := range entries {
		ts, err := time.Parse(time.RFC3339Nano, e.Timestamp)
		if err != nil {
			h.log.Warn("keeping file activity with unparseable timestamp",
				"file_path", e.FilePath, "session_id", e.SessionID, "timestamp", e.Timestamp)
			kept = append(kept, e)
			continue
		}
		if now.Sub(ts) < FileActivityTTL {
			kept = append(kept, e)
		}
	}
	return kept
}

// detectConflict reports a conflict when more than one distinct session
// appears in entries. Repeated reports from one session never conflict.
func detectConflict(path string, entries []FileActivity) (FileConflict, bool) {
	sessions := make([]uint32, 0, len(entries))
	for _, e := range entries {
		sessions = append(sessions, e.SessionID)
	}
	slices.Sort(sessions)
	sessions = slices.Compact(sessions)

	if len(sessions) < 2 {
		return FileConflict{}, false
	}
	return FileConflict{
		FilePath: path,
		Sessions: sessions,
		Actions:  slices.Clone(entries),
	}, true
}
