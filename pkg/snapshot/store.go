// Package snapshot persists and replays the session storage of a browser tab,
// one file per account.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/entrhq/authcache/pkg/jsonfile"
	"github.com/entrhq/authcache/pkg/logging"
)

// DefaultDir is the cache directory used when none is configured.
const DefaultDir = ".auth"

// Snapshot is the full session storage of one tab, key to value.
type Snapshot map[string]string

// Store keeps one snapshot file per username under a cache directory.
// Different usernames never share a file, so concurrent workers that own
// different accounts do not contend.
type Store struct {
	dir       string
	legacyDir string
	logger    *logging.Logger
}

// NewStore creates a store rooted at dir. If dir is a hidden directory
// (".auth"), its non-hidden sibling ("auth") is treated as the legacy
// location to migrate from.
func NewStore(dir string, logger *logging.Logger) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	if logger == nil {
		logger = logging.Discard("snapshot")
	}

	var legacy string
	if base := filepath.Base(dir); strings.HasPrefix(base, ".") && len(base) > 1 {
		legacy = filepath.Join(filepath.Dir(dir), strings.TrimPrefix(base, "."))
	}

	return &Store{dir: dir, legacyDir: legacy, logger: logger}
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the snapshot file for username.
func (s *Store) Path(username string) string {
	return filepath.Join(s.dir, username+".json")
}

// Save writes snap as the snapshot for username, replacing any previous one.
func (s *Store) Save(username string, snap Snapshot) error {
	if err := validUsername(username); err != nil {
		return err
	}
	if err := s.ensureDir(); err != nil {
		return err
	}
	if snap == nil {
		snap = Snapshot{}
	}
	if err := jsonfile.Write(s.Path(username), snap); err != nil {
		return fmt.Errorf("failed to save snapshot for %s: %w", username, err)
	}
	s.logger.Debugf("saved %d session storage keys for %s", len(snap), username)
	return nil
}

// Load returns the snapshot for username. The bool is false when none was
// ever saved. A file that exists but does not decode yields *ParseError.
func (s *Store) Load(username string) (Snapshot, bool, error) {
	if err := validUsername(username); err != nil {
		return nil, false, err
	}

	path := s.Path(username)
	var snap Snapshot
	found, err := jsonfile.Read(path, &snap)
	if !found {
		return nil, false, err
	}
	if err != nil {
		return nil, true, &ParseError{Path: path, Err: err}
	}
	if snap == nil {
		// "null" is valid JSON but not a snapshot
		return nil, true, &ParseError{Path: path, Err: fmt.Errorf("snapshot is null")}
	}
	return snap, true, nil
}

// Remove deletes the snapshot for username, reporting whether one existed.
// The harness itself never calls it; it backs manual cache resets.
func (s *Store) Remove(username string) (bool, error) {
	if err := validUsername(username); err != nil {
		return false, err
	}
	if err := os.Remove(s.Path(username)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to remove snapshot for %s: %w", username, err)
	}
	s.logger.Infof("removed session snapshot for %s", username)
	return true, nil
}

// ensureDir creates the cache directory and, on creation, moves files from
// the legacy location into it. While a legacy directory exists, creation and
// migration run under a file lock next to the cache directory, so a Save
// never writes into a directory whose migration is still in progress.
func (s *Store) ensureDir() error {
	exists, err := dirExists(s.dir)
	if err != nil {
		return err
	}
	if s.legacyDir == "" {
		if exists {
			return nil
		}
		return s.mkdir()
	}
	if exists {
		if legacy, err := dirExists(s.legacyDir); err != nil || !legacy {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(s.dir), 0750); err != nil {
		return fmt.Errorf("failed to create cache parent directory: %w", err)
	}
	lock := flock.New(s.dir + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock cache directory: %w", err)
	}
	defer lock.Unlock()

	// Another worker may have created and migrated it while we waited
	if exists, err := dirExists(s.dir); err != nil || exists {
		return err
	}
	if err := s.mkdir(); err != nil {
		return err
	}
	return s.migrateLegacy()
}

func (s *Store) mkdir() error {
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	s.logger.Infof("created directory %s", s.dir)
	return nil
}

func dirExists(dir string) (bool, error) {
	if _, err := os.Stat(dir); err == nil {
		return true, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	return false, nil
}

func (s *Store) migrateLegacy() error {
	entries, err := os.ReadDir(s.legacyDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read legacy cache directory: %w", err)
	}

	s.logger.Infof("migrating session files from %s to %s", s.legacyDir, s.dir)
	for _, entry := range entries {
		src := filepath.Join(s.legacyDir, entry.Name())
		dst := filepath.Join(s.dir, entry.Name())
		if err := os.Rename(src, dst); err != nil {
			if os.IsNotExist(err) {
				// moved by a process that does not take the lock
				s.logger.Debugf("legacy file %s already migrated", entry.Name())
				continue
			}
			return fmt.Errorf("failed to migrate %s: %w", entry.Name(), err)
		}
	}

	// Only succeeds when empty
	if err := os.Remove(s.legacyDir); err != nil {
		s.logger.Debugf("legacy directory %s not removed: %v", s.legacyDir, err)
	}
	return nil
}

func validUsername(username string) error {
	if username == "" || username != filepath.Base(username) || strings.HasPrefix(username, ".") {
		return fmt.Errorf("invalid username %q for snapshot file", username)
	}
	return nil
}
