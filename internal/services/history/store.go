package history

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/LeonardoBeccarini/greenhouse/internal/model"
	"github.com/LeonardoBeccarini/greenhouse/pkg/metrics"
)

// DefaultLimit is how many of the most recent points are kept for charting.
const DefaultLimit = 100

// Archive is long-term storage for history points.
type Archive interface {
	Append(ctx context.Context, p model.HistoryPoint) error
	Recent(ctx context.Context, limit int) ([]model.HistoryPoint, error)
}

// MemoryStore keeps the newest points by timestamp, keyed by point ID.
type MemoryStore struct {
	mu     sync.RWMutex
	limit  int
	points map[string]model.HistoryPoint
}

func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &MemoryStore{limit: limit, points: make(map[string]model.HistoryPoint)}
}

// Put inserts or replaces the point with p.ID and evicts the oldest points
// beyond the limit.
func (s *MemoryStore) Put(p model.HistoryPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[p.ID] = p
	if len(s.points) > s.limit {
		sorted := s.sortedLocked()
		for _, old := range sorted[:len(sorted)-s.limit] {
			delete(s.points, old.ID)
		}
	}
	metrics.HistoryPoints.Set(float64(len(s.points)))
}

// Merge adds the points whose timestamp is not cached yet and returns how
// many were added.
func (s *MemoryStore) Merge(points []model.HistoryPoint) int {
	s.mu.RLock()
	seen := make(map[model.Timestamp]bool, len(s.points))
	for _, p := range s.points {
		seen[p.DatetimeUpdate] = true
	}
	s.mu.RUnlock()

	added := 0
	for _, p := range points {
		if !p.DatetimeUpdate.Valid() || seen[p.DatetimeUpdate] {
			continue
		}
		seen[p.DatetimeUpdate] = true
		s.Put(p)
		added++
	}
	return added
}

func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	delete(s.points, id)
	n := len(s.points)
	s.mu.Unlock()
	metrics.HistoryPoints.Set(float64(n))
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

// Recent returns up to limit of the newest points, oldest first.
func (s *MemoryStore) Recent(limit int) []model.HistoryPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sorted := s.sortedLocked()
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}
	return sorted
}

// sortedLocked orders by timestamp; unparseable timestamps sort first.
func (s *MemoryStore) sortedLocked() []model.HistoryPoint {
	out := make([]model.HistoryPoint, 0, len(s.points))
	for _, p := range s.points {
		out = append(out, p)
	}
	key := func(p model.HistoryPoint) float64 {
		if !p.DatetimeUpdate.Valid() {
			return math.Inf(-1)
		}
		return float64(p.DatetimeUpdate)
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := key(out[i]), key(out[j])
		if ki != kj {
			return ki < kj
		}
		return out[i].ID < out[j].ID
	})
	return out
}
