package dispatch

import (
	"encoding/json"
	"fmt"
	"math"
)

// Args is the top-level object of an Invoke's args. Absent or null args
// decode to an empty set.
type Args map[string]json.RawMessage

// ArgError reports a missing argument or one of the wrong type.
type ArgError struct {
	Key string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("Missing or invalid '%s' argument", e.Key)
}

func parseArgs(raw json.RawMessage) (Args, error) {
	args := Args{}
	if len(raw) == 0 || string(raw) == "null" {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("args must be a JSON object: %w", err)
	}
	return args, nil
}

func (a Args) String(key string) (string, error) {
	var s string
	raw, ok := a[key]
	if !ok || json.Unmarshal(raw, &s) != nil {
		return "", &ArgError{Key: key}
	}
	return s, nil
}

func (a Args) Uint32(key string) (uint32, error) {
	var f float64
	raw, ok := a[key]
	if !ok || json.Unmarshal(raw, &f) != nil || f < 0 || f > math.MaxUint32 || f != math.Trunc(f) {
		return 0, &ArgError{Key: key}
	}
	return uint32(f), nil
}

// Raw returns the argument untouched; a JSON null counts as present.
func (a Args) Raw(key string) (json.RawMessage, error) {
	raw, ok := a[key]
	if !ok {
		return nil, fmt.Errorf("Missing '%s' argument", key)
	}
	return raw, nil
}
