package modestore

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gemrelay/gemrelay/pkg/models"
)

// Store is a bounded map of user id to conversational mode. When full, the
// entry that was least recently set is evicted. Reads never refresh recency.
type Store struct {
	entries *lru.Cache[string, models.Mode]
}

// New creates a Store holding at most capacity users.
func New(capacity int) (*Store, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("mode store capacity must be positive, got %d", capacity)
	}
	entries, err := lru.New[string, models.Mode](capacity)
	if err != nil {
		return nil, fmt.Errorf("create mode store: %w", err)
	}
	return &Store{entries: entries}, nil
}

// Set inserts or overwrites the mode for userID and marks it most recently set.
func (s *Store) Set(userID string, mode models.Mode) {
	s.entries.Add(userID, mode)
}

// Get returns the stored mode for userID.
func (s *Store) Get(userID string) (models.Mode, bool) {
	return s.entries.Peek(userID)
}

// ModeOf returns the stored mode for userID, or Idle when none is stored.
func (s *Store) ModeOf(userID string) models.Mode {
	if m, ok := s.Get(userID); ok {
		return m
	}
	return models.Idle()
}

// Remove forgets userID. Removing an unknown user is a no-op.
func (s *Store) Remove(userID string) {
	s.entries.Remove(userID)
}

// Len returns the number of stored users.
func (s *Store) Len() int {
	return s.entries.Len()
}
