// Package resilience guards calls to the measurement API with a circuit
// breaker, a token-bucket rate limiter and a process bulkhead. Their state
// is shared by every speedviz process through a locked JSON file, so a
// dashboard in one terminal and a report in another see the same picture.
package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gofrs/flock"
)

const (
	StateFileName  = "state.json"
	DefaultDirName = "resilience"
	appDirName     = "speedviz"
)

// LockTimeout bounds how long a process waits for the state lock. Past it
// the operation proceeds unlocked.
const LockTimeout = 100 * time.Millisecond

// Store reads and writes State under an exclusive file lock.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir, or at the user cache directory
// (~/.cache/speedviz/resilience) when dir is empty.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = DefaultStateDir()
	}
	return &Store{dir: dir}
}

// DefaultStateDir resolves the state directory, honouring XDG_CACHE_HOME.
func DefaultStateDir() string {
	if cacheDir := os.Getenv("XDG_CACHE_HOME"); cacheDir != "" {
		return filepath.Join(cacheDir, appDirName, DefaultDirName)
	}
	if cacheDir, err := os.UserCacheDir(); err == nil && cacheDir != "" {
		return filepath.Join(cacheDir, appDirName, DefaultDirName)
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".cache", appDirName, DefaultDirName)
	}
	return filepath.Join(os.TempDir(), appDirName, DefaultDirName)
}

func (s *Store) Dir() string  { return s.dir }
func (s *Store) Path() string { return filepath.Join(s.dir, StateFileName) }

func (s *Store) lock() (*flock.Flock, error) {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, err
	}

	fl := flock.New(filepath.Join(s.dir, ".lock"))
	ctx, cancel := context.WithTimeout(context.Background(), LockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, err
	}
	if !locked {
		return nil, nil
	}
	return fl, nil
}

// withLock runs fn holding the lock when it can be had in time.
func (s *Store) withLock(fn func() error) error {
	fl, err := s.lock()
	if err != nil {
		return err
	}
	if fl != nil {
		defer func() { _ = fl.Unlock() }()
	}
	return fn()
}

// Load returns the persisted state, or an empty one when the file is
// missing, unreadable JSON, or written by another schema version.
func (s *Store) Load() (*State, error) {
	var state *State
	err := s.withLock(func() error {
		var err error
		state, err = s.read()
		return err
	})
	return state, err
}

func (s *Store) read() (*State, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewState(), nil
		}
		return nil, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil || state.Version != StateVersion {
		return NewState(), nil
	}
	if state.Hosts == nil {
		state.Hosts = make(map[string]*HostState)
	}
	return &state, nil
}

func (s *Store) write(state *State) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}
	state.Version = StateVersion

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	// Unique temp name: unlocked writers must not clobber each other.
	tmp := fmt.Sprintf("%s.%d.%d.tmp", s.Path(), os.Getpid(), time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	if runtime.GOOS == "windows" {
		_ = os.Remove(s.Path())
	}
	if err := os.Rename(tmp, s.Path()); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Save persists state.
func (s *Store) Save(state *State) error {
	return s.withLock(func() error { return s.write(state) })
}

// Update runs a read-modify-write cycle under a single lock.
func (s *Store) Update(fn func(*State) error) error {
	return s.withLock(func() error {
		state, err := s.read()
		if err != nil {
			return err
		}
		if err := fn(state); err != nil {
			return err
		}
		return s.write(state)
	})
}

// Clear removes the state file.
func (s *Store) Clear() error {
	return s.withLock(func() error {
		err := os.Remove(s.Path())
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	})
}

// Exists reports whether a state file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.Path())
	return err == nil
}
