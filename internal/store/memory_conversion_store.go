package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dunamismax/pixeledit/internal/domain"
)

type MemoryConversionStore struct {
	mu          sync.RWMutex
	conversions map[string]domain.Conversion
}

func NewMemoryConversionStore() *MemoryConversionStore {
	return &MemoryConversionStore{
		conversions: make(map[string]domain.Conversion),
	}
}

func (s *MemoryConversionStore) Create(_ context.Context, conversion domain.Conversion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversions[conversion.ID] = conversion
	return nil
}

func (s *MemoryConversionStore) Get(_ context.Context, id string) (domain.Conversion, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conversion, ok := s.conversions[id]
	return conversion, ok, nil
}

func (s *MemoryConversionStore) MarkPublished(_ context.Context, id, objectKey string, at time.Time) (domain.Conversion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversion, ok := s.conversions[id]
	if !ok {
		return domain.Conversion{}, ErrConversionNotFound
	}

	at = at.UTC()
	conversion.Status = domain.ConversionStatusPublished
	conversion.ObjectKey = objectKey
	conversion.PublishedAt = &at
	s.conversions[id] = conversion
	return conversion, nil
}

func (s *MemoryConversionStore) ListBySession(_ context.Context, sessionID string) ([]domain.Conversion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Conversion, 0)
	for _, conversion := range s.conversions {
		if conversion.SessionID == sessionID {
			out = append(out, conversion)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
