package storage

import (
	"context"
	"sync"
	"time"
)

// ArchivedPoint is one record captured by the in-memory archive.
type ArchivedPoint struct {
	Pool  string
	Time  time.Time
	Price float64
}

var _ Archive = (*MemoryArchive)(nil)

// MemoryArchive is an Archive for tests.
type MemoryArchive struct {
	mu     sync.Mutex
	points []ArchivedPoint
}

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{points: make([]ArchivedPoint, 0)}
}

func (m *MemoryArchive) SavePricePoint(_ context.Context, pool string, t time.Time, price float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = append(m.points, ArchivedPoint{Pool: pool, Time: t, Price: price})
	return nil
}

func (m *MemoryArchive) Points() []ArchivedPoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Copy to avoid race
	out := make([]ArchivedPoint, len(m.points))
	copy(out, m.points)
	return out
}
