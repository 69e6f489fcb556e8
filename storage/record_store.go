package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	recordsFile    = "videos.json"
	tombstonesFile = "removed.json"

	lockTimeout = 5 * time.Second
)

// RecordStore persists the metadata cache and the tombstone set as JSON
// documents in a single directory. Saves are whole-file overwrites: callers
// load, mutate, then save the full record sequence.
//
// The store acquires an advisory file lock on open and holds it until Close,
// enforcing the single-writer discipline across processes.
type RecordStore struct {
	dir  string
	lock *FileLock
}

// Open creates or opens a record store rooted at dir.
func Open(dir string) (*RecordStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &StoreError{Op: "open", Doc: dir, Err: err}
	}

	lock := NewFileLock(filepath.Join(dir, recordsFile))
	if err := lock.Lock(lockTimeout); err != nil {
		return nil, err
	}

	return &RecordStore{dir: dir, lock: lock}, nil
}

// Close releases the store's file lock.
func (s *RecordStore) Close() error {
	return s.lock.Unlock()
}

// Load reads the full record sequence. A missing document yields an empty
// sequence; a document with duplicate ids is rejected as corrupt.
func (s *RecordStore) Load() ([]MetadataRecord, error) {
	path := filepath.Join(s.dir, recordsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &StoreError{Op: "read", Doc: "records", Err: err}
	}

	var records []MetadataRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &StoreError{Op: "read", Doc: "records", Err: ErrCorrupt}
	}

	if err := checkUniqueIDs(records); err != nil {
		return nil, &StoreError{Op: "read", Doc: "records", Err: err}
	}

	return records, nil
}

// Save overwrites the record document with the given sequence.
// Duplicate ids are rejected before anything touches disk.
func (s *RecordStore) Save(records []MetadataRecord) error {
	if err := checkUniqueIDs(records); err != nil {
		return &StoreError{Op: "write", Doc: "records", Err: err}
	}
	return s.writeJSON(recordsFile, "records", records)
}

// LoadTombstones reads the set of removed ids.
func (s *RecordStore) LoadTombstones() (map[string]bool, error) {
	path := filepath.Join(s.dir, tombstonesFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]bool{}, nil
		}
		return nil, &StoreError{Op: "read", Doc: "tombstones", Err: err}
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, &StoreError{Op: "read", Doc: "tombstones", Err: ErrCorrupt}
	}

	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// SaveTombstones overwrites the tombstone document. Ids are stored sorted so
// the document diffs cleanly under version control.
func (s *RecordStore) SaveTombstones(ids map[string]bool) error {
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)
	return s.writeJSON(tombstonesFile, "tombstones", sorted)
}

func (s *RecordStore) writeJSON(file, doc string, v any) error {
	writer, err := NewAtomicWriter(filepath.Join(s.dir, file))
	if err != nil {
		return &StoreError{Op: "write", Doc: doc, Err: err}
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		writer.Abort()
		return &StoreError{Op: "write", Doc: doc, Err: err}
	}

	if err := writer.Commit(); err != nil {
		return &StoreError{Op: "write", Doc: doc, Err: err}
	}
	return nil
}

func checkUniqueIDs(records []MetadataRecord) error {
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if seen[r.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}
