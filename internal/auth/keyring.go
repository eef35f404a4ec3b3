package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/zalando/go-keyring"
)

const serviceName = "speedviz"

// ErrNoCredentials is returned when nothing is stored for an origin.
var ErrNoCredentials = errors.New("no stored credentials")

// Credentials is a stored API token.
type Credentials struct {
	Token   string    `json:"token"`
	Label   string    `json:"label,omitempty"`
	SavedAt time.Time `json:"saved_at"`
}

// Store keeps credentials in the system keyring, falling back to a 0600
// JSON file when no keyring is reachable.
type Store struct {
	useKeyring  bool
	fallbackDir string
}

// NewStore probes the keyring and returns a store. SPEEDVIZ_NO_KEYRING
// forces the file fallback. The plaintext warning goes to warn.
func NewStore(fallbackDir string, warn io.Writer) *Store {
	if os.Getenv("SPEEDVIZ_NO_KEYRING") != "" {
		return &Store{fallbackDir: fallbackDir}
	}

	probe := serviceName + "::probe"
	if err := keyring.Set(serviceName, probe, "ok"); err == nil {
		_ = keyring.Delete(serviceName, probe)
		return &Store{useKeyring: true, fallbackDir: fallbackDir}
	}
	if warn != nil {
		fmt.Fprintf(warn, "warning: system keyring unavailable, credentials stored in plaintext at %s\n",
			filepath.Join(fallbackDir, "credentials.json"))
	}
	return &Store{fallbackDir: fallbackDir}
}

func key(origin string) string {
	return serviceName + "::" + origin
}

// UsingKeyring reports whether the system keyring backs the store.
func (s *Store) UsingKeyring() bool {
	return s.useKeyring
}

// Backend names the storage in use.
func (s *Store) Backend() string {
	if s.useKeyring {
		return "keyring"
	}
	return "file"
}

// Load returns the credentials for origin or ErrNoCredentials.
func (s *Store) Load(origin string) (*Credentials, error) {
	if s.useKeyring {
		data, err := keyring.Get(serviceName, key(origin))
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNoCredentials
		}
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
		var creds Credentials
		if err := json.Unmarshal([]byte(data), &creds); err != nil {
			return nil, fmt.Errorf("invalid credentials: %w", err)
		}
		return &creds, nil
	}

	all, err := s.loadFile()
	if err != nil {
		return nil, err
	}
	creds, ok := all[origin]
	if !ok {
		return nil, ErrNoCredentials
	}
	return creds, nil
}

// Save stores creds for origin.
func (s *Store) Save(origin string, creds *Credentials) error {
	if s.useKeyring {
		data, err := json.Marshal(creds)
		if err != nil {
			return err
		}
		return keyring.Set(serviceName, key(origin), string(data))
	}

	all, err := s.loadFile()
	if err != nil {
		return err
	}
	all[origin] = creds
	return s.saveFile(all)
}

// Delete removes credentials for origin. Deleting nothing is not an error.
func (s *Store) Delete(origin string) error {
	if s.useKeyring {
		err := keyring.Delete(serviceName, key(origin))
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return err
	}

	all, err := s.loadFile()
	if err != nil {
		return err
	}
	if _, ok := all[origin]; !ok {
		return nil
	}
	delete(all, origin)
	return s.saveFile(all)
}

func (s *Store) credentialsPath() string {
	return filepath.Join(s.fallbackDir, "credentials.json")
}

func (s *Store) loadFile() (map[string]*Credentials, error) {
	data, err := os.ReadFile(s.credentialsPath())
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]*Credentials), nil
	}
	if err != nil {
		return nil, err
	}
	var all map[string]*Credentials
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.credentialsPath(), err)
	}
	if all == nil {
		all = make(map[string]*Credentials)
	}
	return all, nil
}

func (s *Store) saveFile(all map[string]*Credentials) error {
	if err := os.MkdirAll(s.fallbackDir, 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.fallbackDir, "credentials-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	dest := s.credentialsPath()
	if err := os.Rename(tmpPath, dest); err != nil {
		if runtime.GOOS == "windows" {
			_ = os.Remove(dest)
			return os.Rename(tmpPath, dest)
		}
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
