package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dunamismax/pixeledit/internal/domain"
	"github.com/dunamismax/pixeledit/internal/editor"
	"github.com/dunamismax/pixeledit/internal/pipeline"
)

func TestMemorySessionStoreLifecycle(t *testing.T) {
	sessions := NewMemorySessionStore()
	now := time.Now()

	ws := newWorkspace(t, "s-1", now)
	if err := sessions.Create(ws); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := sessions.Create(ws); err == nil {
		t.Fatal("expected duplicate create to fail")
	}

	got, ok := sessions.Get("s-1")
	if !ok || got != ws {
		t.Fatal("expected to get the stored workspace")
	}
	if !sessions.Delete("s-1") || sessions.Delete("s-1") {
		t.Fatal("expected delete to succeed exactly once")
	}
}

func TestMemorySessionStoreSweep(t *testing.T) {
	sessions := NewMemorySessionStore()
	now := time.Now()

	stale := newWorkspace(t, "stale", now.Add(-2*time.Hour))
	fresh := newWorkspace(t, "fresh", now)
	_ = sessions.Create(stale)
	_ = sessions.Create(fresh)

	if removed := sessions.Sweep(now.Add(-time.Hour)); removed != 1 {
		t.Fatalf("expected 1 removed workspace, got %d", removed)
	}
	if _, ok := sessions.Get("fresh"); !ok {
		t.Fatal("expected fresh workspace to survive")
	}
	if sessions.Len() != 1 {
		t.Fatalf("expected 1 workspace, got %d", sessions.Len())
	}
}

func TestMemoryConversionStore(t *testing.T) {
	ctx := context.Background()
	conversions := NewMemoryConversionStore()
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"c-2", "c-1"} {
		if err := conversions.Create(ctx, domain.Conversion{
			ID:        id,
			SessionID: "s-1",
			Status:    domain.ConversionStatusSaved,
			Format:    "png",
			CreatedAt: base.Add(time.Duration(-i) * time.Minute),
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	list, err := conversions.ListBySession(ctx, "s-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "c-1" {
		t.Fatalf("expected conversions ordered by creation time, got %+v", list)
	}

	published, err := conversions.MarkPublished(ctx, "c-1", "outputs/s-1/c-1.png", base)
	if err != nil {
		t.Fatalf("mark published: %v", err)
	}
	if published.Status != domain.ConversionStatusPublished || published.PublishedAt == nil {
		t.Fatalf("unexpected conversion %+v", published)
	}

	if _, err := conversions.MarkPublished(ctx, "missing", "", base); !errors.Is(err, ErrConversionNotFound) {
		t.Fatalf("expected ErrConversionNotFound, got %v", err)
	}
}

func newWorkspace(t *testing.T, id string, now time.Time) *Workspace {
	t.Helper()

	session, err := editor.NewSession(id, editor.Options{Converter: pipeline.NewConverter(t.TempDir(), 0)})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return NewWorkspace(session, now)
}
