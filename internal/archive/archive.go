// Package archive persists the set of already-downloaded track ids so
// repeated runs skip completed work.
//
// The backing format is a plain UTF-8 text file with one id per line,
// append-only. A missing file is treated as an empty archive, and the
// pipeline never rewrites or removes recorded lines.
package archive

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Store is a file-backed set of completed track ids.
//
// The full file is loaded into memory on Open; Record appends to the file
// and updates the in-memory set under a mutex, so concurrent track
// completions never interleave partial lines.
//
// A nil *Store is valid and represents disabled archive mode: Contains
// always reports false and Record is a no-op.
type Store struct {
	path string

	mu  sync.Mutex
	ids map[string]struct{}
}

// Open loads the archive file at path. A missing file yields an empty
// archive; any other read error is returned.
func Open(path string) (*Store, error) {
	s := &Store{
		path: path,
		ids:  make(map[string]struct{}),
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id != "" {
			s.ids[id] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read archive %s: %w", path, err)
	}

	return s, nil
}

// Contains reports whether id has been recorded as completed.
func (s *Store) Contains(id string) bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// Record appends id to the archive file and the in-memory set. Ids already
// recorded are not appended again. The write is append-only: a failure can
// lose the new entry but never corrupts existing lines.
func (s *Store) Record(id string) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return nil
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open archive %s for append: %w", s.path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(id + "\n"); err != nil {
		return fmt.Errorf("append to archive %s: %w", s.path, err)
	}

	s.ids[id] = struct{}{}
	return nil
}

// Len returns the number of recorded ids.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
