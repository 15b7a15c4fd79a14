package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/desertthunder/rdex/internal/shared"
)

const legacyPrefix = "BearerToken="

// Store persists one [Token] per host in a JSON file.
//
// Saving the primary host also rewrites the legacy file as "BearerToken=<token>\n", and loading the
// primary host falls back to that file when the JSON file has no entry.
type Store struct {
	path       string
	legacyPath string
	mu         sync.Mutex
}

// NewStore returns a Store over path. legacyPath may be empty to disable the legacy mirror.
func NewStore(path, legacyPath string) *Store {
	return &Store{path: path, legacyPath: legacyPath}
}

// Path returns the JSON token file location.
func (s *Store) Path() string { return s.path }

// All returns every stored token keyed by host. A missing file yields an empty map.
func (s *Store) All() (map[string]Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll()
}

// Hosts returns the hosts with a stored, non-empty token, sorted.
func (s *Store) Hosts() ([]string, error) {
	tokens, err := s.All()
	if err != nil {
		return nil, err
	}
	hosts := make([]string, 0, len(tokens))
	for h, t := range tokens {
		if !t.Empty() {
			hosts = append(hosts, h)
		}
	}
	sort.Strings(hosts)
	return hosts, nil
}

// Load returns the token for host or [shared.ErrNotAuthenticated] when none is stored.
func (s *Store) Load(host string) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.readAll()
	if err != nil {
		return Token{}, err
	}
	if t, ok := tokens[host]; ok && !t.Empty() {
		return t, nil
	}

	if host == HostRDE && s.legacyPath != "" {
		if access, err := s.readLegacy(); err == nil && access != "" {
			return NewToken(access, ""), nil
		}
	}
	return Token{}, fmt.Errorf("%w: no token stored for %s", shared.ErrNotAuthenticated, host)
}

// Save stores t for host, keeping the other hosts' entries.
func (s *Store) Save(host string, t Token) error {
	if t.Empty() {
		return fmt.Errorf("%w: refusing to store an empty token for %s", shared.ErrInvalidInput, host)
	}
	if t.TokenType == "" {
		t.TokenType = "Bearer"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.readAll()
	if err != nil {
		return err
	}
	tokens[host] = t
	if err := s.writeAll(tokens); err != nil {
		return err
	}

	if host == HostRDE && s.legacyPath != "" {
		if err := shared.WriteFileAtomic(s.legacyPath, []byte(legacyPrefix+t.AccessToken+"\n"), 0o600); err != nil {
			return fmt.Errorf("failed to write legacy token file: %w", err)
		}
	}
	return nil
}

// Delete removes the token for host.
func (s *Store) Delete(host string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.readAll()
	if err != nil {
		return err
	}
	delete(tokens, host)
	if err := s.writeAll(tokens); err != nil {
		return err
	}
	if host == HostRDE && s.legacyPath != "" {
		if err := os.Remove(s.legacyPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove legacy token file: %w", err)
		}
	}
	return nil
}

// Clear removes both token files.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range []string{s.path, s.legacyPath} {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return nil
}

func (s *Store) readAll() (map[string]Token, error) {
	tokens := make(map[string]Token)
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return tokens, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return tokens, nil
	}
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("%w: corrupt token file %s: %v", shared.ErrInvalidInput, s.path, err)
	}
	return tokens, nil
}

func (s *Store) writeAll(tokens map[string]Token) error {
	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tokens: %w", err)
	}
	return shared.WriteFileAtomic(s.path, data, 0o600)
}

func (s *Store) readLegacy() (string, error) {
	data, err := os.ReadFile(s.legacyPath)
	if err != nil {
		return "", err
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, legacyPrefix); ok {
			return strings.TrimSpace(v), nil
		}
	}
	if len(lines) == 1 && !strings.Contains(lines[0], "=") {
		return strings.TrimSpace(lines[0]), nil
	}
	return "", nil
}
