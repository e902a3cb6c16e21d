package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is a concurrency-safe in-memory Store with the same contract as the
// Mongo implementation. It backs unit tests and local runs without a
// database.
type Memory struct {
	mu       sync.RWMutex
	readings []Reading
	users    map[string]map[string]any
	nextID   int
}

func NewMemory() *Memory {
	return &Memory{users: make(map[string]map[string]any)}
}

func (s *Memory) InsertReading(_ context.Context, r Reading) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	r.ID = fmt.Sprintf("mem-%d", s.nextID)
	s.readings = append(s.readings, r)
	return r.ID, nil
}

func (s *Memory) RecentReadings(_ context.Context, limit int) ([]Reading, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Reading, len(s.readings))
	copy(out, s.readings)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Memory) UserSettings(_ context.Context, identity string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.users[identity]
	if !ok {
		return nil, ErrNotFound
	}
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out, nil
}

func (s *Memory) UpsertUserSettings(_ context.Context, identity string, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.users[identity]
	if !ok {
		doc = make(map[string]any, len(patch)+1)
		s.users[identity] = doc
	}
	for k, v := range patch {
		doc[k] = v
	}
	doc["updated_ts"] = time.Now().UnixMilli()
	return nil
}

func (s *Memory) Ping(context.Context) error { return nil }
