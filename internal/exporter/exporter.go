// Package exporter renders hub snapshots for offline inspection.
package exporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/VentureIA/chorus/internal/intel"
)

// Formats lists the values accepted by Export.
var Formats = []string{"json", "csv", "yaml"}

type Snapshot struct {
	GeneratedAt string                   `json:"generated_at"`
	Broadcasts  []intel.BroadcastMessage `json:"broadcasts"`
	Conflicts   []intel.FileConflict     `json:"conflicts"`
	Scratchpad  []intel.ScratchpadEntry  `json:"scratchpad"`
}

// Take reads the hub's current state.
func Take(hub *intel.Hub, generatedAt string) Snapshot {
	return Snapshot{
		GeneratedAt: generatedAt,
		Broadcasts:  hub.AllMessages(),
		Conflicts:   hub.AllConflicts(),
		Scratchpad:  hub.ReadScratchpad(),
	}
}

// Export encodes s and returns the bytes with their content type.
func Export(s Snapshot, format string) ([]byte, string, error) {
	switch format {
	case "json":
		return ExportJSON(s)
	case "csv":
		return ExportConflictsCSV(s)
	case "yaml":
		return ExportYAML(s)
	default:
		return nil, "", fmt.Errorf("unknown format %q (use %s)", format, strings.Join(Formats, "|"))
	}
}

func ExportJSON(s Snapshot) ([]byte, string, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, "", err
	}
	return b, "application/json", nil
}

// ExportYAML goes through JSON first so field names and raw metadata come
// out the same as in the JSON export.
func ExportYAML(s Snapshot) ([]byte, string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, "", err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, "", err
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, "", fmt.Errorf("encode yaml: %w", err)
	}
	return out, "application/yaml", nil
}

// ExportConflictsCSV writes one row per activity that takes part in a
// conflict.
func ExportConflictsCSV(s Snapshot) ([]byte, string, error) {
	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"file_path", "sessions", "session_id", "action", "timestamp"})
	for _, c := range s.Conflicts {
		sessions := make([]string, len(c.Sessions))
		for i, id := range c.Sessions {
			sessions[i] = strconv.FormatUint(uint64(id), 10)
		}
		joined := strings.Join(sessions, " ")
		for _, a := range c.Actions {
			_ = w.Write([]string{c.FilePath, joined, strconv.FormatUint(uint64(a.SessionID), 10), a.Action, a.Timestamp})
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "text/csv", nil
}
