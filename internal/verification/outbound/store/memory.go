package store

import (
	"context"
	"sync"
	"time"

	"github.com/shandysiswandi/smsotp/internal/pkg/goerror"
	"github.com/shandysiswandi/smsotp/internal/pkg/instrument"
	"github.com/shandysiswandi/smsotp/internal/verification/entity"
)

// Memory is a process-local store. Records are lost on restart.
type Memory struct {
	spanner

	mu      sync.RWMutex
	records map[string]entity.Record
}

func NewMemory(ins instrument.Instrumentation) *Memory {
	return &Memory{
		spanner: spanner{ins: ins, driver: DriverMemory},
		records: make(map[string]entity.Record),
	}
}

func (m *Memory) Get(ctx context.Context, userID string) (_ *entity.Record, err error) {
	_, span := m.startSpan(ctx, "Get")
	defer func() { m.endSpan(span, err) }()

	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[userID]
	if !ok {
		return nil, goerror.ErrNotFound
	}

	return &rec, nil
}

func (m *Memory) Set(ctx context.Context, userID string, rec entity.Record) error {
	_, span := m.startSpan(ctx, "Set")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[userID] = rec
	return nil
}

func (m *Memory) Delete(ctx context.Context, userID string) error {
	_, span := m.startSpan(ctx, "Delete")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, userID)
	return nil
}

// SweepExpired removes records whose expiry is strictly before now.
func (m *Memory) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	_, span := m.startSpan(ctx, "SweepExpired")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, rec := range m.records {
		if rec.ExpiresAt.Before(now) {
			delete(m.records, id)
			n++
		}
	}

	return n, nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.records)
}
