// Package store backs the store_get / store_set commands: small JSON
// documents addressed by a file name and a key, the way the desktop UI
// keeps its settings files.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrInvalidFile = errors.New("invalid store file name")
	ErrInvalidKey  = errors.New("invalid store key")
)

const maxFileNameLen = 255

// KV reads and writes one value per (file, key). Get returns a nil value
// and no error when the key is absent.
type KV interface {
	Get(ctx context.Context, file, key string) (json.RawMessage, error)
	Set(ctx context.Context, file, key string, value json.RawMessage) error
}

// ValidateFile rejects names that could escape a flat store directory.
func ValidateFile(file string) error {
	switch {
	case file == "", file == ".", file == "..":
		return fmt.Errorf("%w: %q", ErrInvalidFile, file)
	case len(file) > maxFileNameLen:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidFile, maxFileNameLen)
	case strings.ContainsAny(file, `/\`+"\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidFile, file)
	}
	return nil
}

func validate(file, key string, value json.RawMessage, write bool) error {
	if err := ValidateFile(file); err != nil {
		return err
	}
	if key == "" {
		return ErrInvalidKey
	}
	if write && !json.Valid(value) {
		return fmt.Errorf("store value for %s/%s is not valid JSON", file, key)
	}
	return nil
}

// Memory keeps everything in process. It is the default backend.
type Memory struct {
	mu    sync.RWMutex
	files map[string]map[string]json.RawMessage
}

func NewMemory() *Memory {
	return &Memory{files: make(map[string]map[string]json.RawMessage)}
}

func (m *Memory) Get(_ context.Context, file, key string) (json.RawMessage, error) {
	if err := validate(file, key, nil, false); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.files[file][key]
	if !ok {
		return nil, nil
	}
	return append(json.RawMessage(nil), v...), nil
}

func (m *Memory) Set(_ context.Context, file, key string, value json.RawMessage) error {
	if err := validate(file, key, value, true); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kv, ok := m.files[file]
	if !ok {
		kv = make(map[string]json.RawMessage)
		m.files[file] = kv
	}
	kv[key] = append(json.RawMessage(nil), value...)
	return nil
}
