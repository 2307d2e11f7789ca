package notification

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var ErrEmptyToken = errors.New("token is required")

// TokenStore is the set of Expo push tokens, persisted as a sorted JSON list.
type TokenStore struct {
	path   string
	mu     sync.RWMutex
	tokens map[string]struct{}
}

// LoadTokenStore reads path if it exists. A missing or unreadable file
// yields an empty store; the unreadable case is reported.
func LoadTokenStore(path string) (*TokenStore, error) {
	s := &TokenStore{path: path, tokens: make(map[string]struct{})}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("failed to read push tokens: %w", err)
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return s, fmt.Errorf("failed to parse push tokens: %w", err)
	}
	for _, t := range list {
		if t = strings.TrimSpace(t); t != "" {
			s.tokens[t] = struct{}{}
		}
	}
	return s, nil
}

func (s *TokenStore) Register(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = struct{}{}
	return s.saveLocked()
}

// Unregister removes token. Removing an unknown token is not an error.
func (s *TokenStore) Unregister(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[token]; !ok {
		return nil
	}
	delete(s.tokens, token)
	return s.saveLocked()
}

func (s *TokenStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.tokens))
	for t := range s.tokens {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (s *TokenStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

func (s *TokenStore) saveLocked() error {
	if s.path == "" {
		return nil
	}
	list := make([]string, 0, len(s.tokens))
	for t := range s.tokens {
		list = append(list, t)
	}
	sort.Strings(list)
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
