package store

import (
	"context"
	"errors"
	"time"

	"github.com/dunamismax/pixeledit/internal/domain"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrConversionNotFound = errors.New("conversion not found")
)

type SessionStore interface {
	Create(ws *Workspace) error
	Get(id string) (*Workspace, bool)
	Delete(id string) bool
	Sweep(idleSince time.Time) int
	Len() int
}

type ConversionStore interface {
	Create(ctx context.Context, conversion domain.Conversion) error
	Get(ctx context.Context, id string) (domain.Conversion, bool, error)
	MarkPublished(ctx context.Context, id, objectKey string, at time.Time) (domain.Conversion, error)
	ListBySession(ctx context.Context, sessionID string) ([]domain.Conversion, error)
}
