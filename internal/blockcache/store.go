package blockcache

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"tools.zach/dev/ccblock/internal/atomicfile"
	"tools.zach/dev/ccblock/internal/paths"
)

// ///////////////////////////////////////////////
// Record
// ///////////////////////////////////////////////

// timeFormat is how start times are written. Reads accept any RFC 3339 value.
const timeFormat = "2006-01-02T15:04:05.000Z"

// Record is the single cache entry as stored on disk.
type Record struct {
	StartTime string `json:"startTime"`
}

// Store holds at most one block start time.
type Store interface {
	// Read returns the stored start time. It reports false when nothing
	// usable is stored and never fails otherwise.
	Read() (time.Time, bool)
	// Write replaces the stored start time.
	Write(start time.Time) error
}

// ///////////////////////////////////////////////
// FileStore
// ///////////////////////////////////////////////

// FileStore keeps the record as a JSON file.
type FileStore struct {
	path string
	log  *slog.Logger
}

// NewFileStore returns a store backed by path, or by
// [paths.DefaultBlockCache] when path is empty. A nil log uses slog.Default.
func NewFileStore(path string, log *slog.Logger) *FileStore {
	if path == "" {
		path = paths.DefaultBlockCache()
	}
	if log == nil {
		log = slog.Default()
	}
	return &FileStore{path: path, log: log}
}

// Path returns the cache file location.
func (s *FileStore) Path() string { return s.path }

// Read loads the record. A missing file, malformed JSON, a non-string or
// missing startTime, and an unparseable date all read as absent.
func (s *FileStore) Read() (time.Time, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Debug("block cache unreadable", "path", s.path, "error", err)
		}
		return time.Time{}, false
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.log.Debug("block cache malformed", "path", s.path, "error", err)
		return time.Time{}, false
	}
	start, err := time.Parse(time.RFC3339Nano, rec.StartTime)
	if err != nil {
		s.log.Debug("block cache has invalid start time", "path", s.path, "start_time", rec.StartTime)
		return time.Time{}, false
	}
	return start.UTC(), true
}

// Write stores start atomically, creating the cache directory if needed.
func (s *FileStore) Write(start time.Time) error {
	return atomicfile.WriteJSON(s.path, Record{StartTime: start.UTC().Format(timeFormat)}, 0o644)
}

// ///////////////////////////////////////////////
// MemoryStore
// ///////////////////////////////////////////////

// MemoryStore keeps the record in memory. It is used when the file cache is
// disabled.
type MemoryStore struct {
	mu    sync.Mutex
	start time.Time
	ok    bool
}

// Read returns the stored start time, if any.
func (s *MemoryStore) Read() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start, s.ok
}

// Write replaces the stored start time.
func (s *MemoryStore) Write(start time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.start, s.ok = start.UTC(), true
	return nil
}
