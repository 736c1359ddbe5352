package main

import (
	"sync"
)

// chatStore holds conversation logs keyed by user identifier. Logs live for
// the lifetime of the process; nothing expires them.
type chatStore struct {
	mu            sync.RWMutex
	conversations map[string]*conversation
}

// conversation carries its own mutex so that appends for one user are
// serialized even when requests for that user overlap.
type conversation struct {
	mu    sync.Mutex
	turns []Turn
}

func newChatStore() *chatStore {
	return &chatStore{conversations: make(map[string]*conversation)}
}

// get returns the conversation for the given user, creating it on first access.
func (s *chatStore) get(userID string) *conversation {
	s.mu.RLock()
	c, ok := s.conversations[userID]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.conversations[userID]; ok {
		return c
	}
	c = &conversation{}
	s.conversations[userID] = c

	return c
}

// history returns a copy of the user's conversation log in insertion order.
func (s *chatStore) history(userID string) []Turn {
	c := s.get(userID)
	c.mu.Lock()
	defer c.mu.Unlock()

	turns := make([]Turn, len(c.turns))
	copy(turns, c.turns)

	return turns
}

func (s *chatStore) append(userID string, turns ...Turn) {
	c := s.get(userID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, turns...)
}

// reset erases the user's conversation log.
func (s *chatStore) reset(userID string) {
	c := s.get(userID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = nil
}
