// Package localstore keeps device-local state in a single JSON file.
//
// The file holds the selected industry, the guide flag, the CLI owner id and,
// for the local storage driver, the serialized entry list. Keys for owners
// other than the device owner are namespaced as "<owner>/<key>".
package localstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/hpungsan/playbook/internal/store"
)

// FileName is the local storage file inside the base directory.
const FileName = "local.json"

// KeyOwnerID holds the device owner id used by the CLI and MCP server.
const KeyOwnerID = "pp_owner_id"

// File is a JSON key/value file. It is safe for concurrent use within one process.
type File struct {
	path string

	mu   sync.Mutex
	data map[string]json.RawMessage
}

var _ store.PreferenceSpace = (*File)(nil)

// Open reads baseDir/local.json, creating an empty store if it does not exist.
// A corrupt file is an error; it is never silently discarded.
func Open(baseDir string) (*File, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	f := &File{
		path: filepath.Join(baseDir, FileName),
		data: make(map[string]json.RawMessage),
	}

	raw, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	if len(raw) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(raw, &f.data); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.path, err)
	}
	return f, nil
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// OwnerID returns the device owner id, generating and persisting one on first use.
func (f *File) OwnerID() (string, error) {
	if v, ok := f.Get(KeyOwnerID); ok && v != "" {
		return v, nil
	}
	id := uuid.NewString()
	if err := f.Set(KeyOwnerID, id); err != nil {
		return "", err
	}
	return id, nil
}

// Get returns a string value.
func (f *File) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, ok := f.data[key]
	if !ok {
		return "", false
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return v, true
}

// Set stores a string value and writes the file.
func (f *File) Set(key, value string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return f.put(key, raw)
}

// Remove deletes a key and writes the file. Removing a missing key is a no-op.
func (f *File) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.data[key]; !ok {
		return nil
	}
	prev := f.data[key]
	delete(f.data, key)
	if err := f.flushLocked(); err != nil {
		f.data[key] = prev
		return err
	}
	return nil
}

// Namespace returns preferences scoped to owner. The device owner shares the
// unprefixed keys so the CLI and the web UI agree on one selected industry.
func (f *File) Namespace(owner string) store.Preferences {
	if owner == "" {
		return f
	}
	if id, ok := f.Get(KeyOwnerID); ok && id == owner {
		return f
	}
	return &scoped{file: f, prefix: owner + "/"}
}

// getJSON decodes a structured value into dst. Missing keys leave dst untouched.
func (f *File) getJSON(key string, dst any) (bool, error) {
	f.mu.Lock()
	raw, ok := f.data[key]
	f.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// putJSON encodes v under key and writes the file.
func (f *File) putJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return f.put(key, raw)
}

func (f *File) put(key string, raw json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.data[key]
	f.data[key] = raw
	if err := f.flushLocked(); err != nil {
		if had {
			f.data[key] = prev
		} else {
			delete(f.data, key)
		}
		return err
	}
	return nil
}

// flushLocked writes the whole file atomically. Must be called with mu held.
func (f *File) flushLocked() error {
	data, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".local-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", f.path, err)
	}
	return nil
}

// scoped prefixes every key with an owner id.
type scoped struct {
	file   *File
	prefix string
}

func (s *scoped) Get(key string) (string, bool) { return s.file.Get(s.prefix + key) }
func (s *scoped) Set(key, value string) error   { return s.file.Set(s.prefix+key, value) }
func (s *scoped) Remove(key string) error       { return s.file.Remove(s.prefix + key) }
