package flood

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count int
	start time.Time
}

// MemStore keeps windows in process memory. Losing them only costs one window
// of missed detection.
type MemStore struct {
	mu      sync.Mutex
	windows map[string]*window
}

func NewMemStore() *MemStore {
	return &MemStore{windows: make(map[string]*window)}
}

func (s *MemStore) Observe(ctx context.Context, key string, now time.Time, limit int, span time.Duration) (Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || now.Sub(w.start) > span {
		w = &window{start: now}
		s.windows[key] = w
	}
	w.count++

	if w.count >= limit && now.Sub(w.start) <= span {
		w.count = 0
		w.start = now
		return Flood, nil
	}
	return Normal, nil
}

// Sweep drops windows that started more than span before now and returns how
// many were removed.
func (s *MemStore) Sweep(now time.Time, span time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		if now.Sub(w.start) > span {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live windows.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
