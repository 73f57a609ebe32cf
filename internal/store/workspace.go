package store

import (
	"sync"
	"time"

	"github.com/dunamismax/pixeledit/internal/editor"
	"github.com/dunamismax/pixeledit/internal/raster"
)

// Workspace pairs an editor session with the buffer currently on display.
// Hold the lock while reading or replacing Current.
type Workspace struct {
	sync.Mutex

	ID        string
	Editor    *editor.Session
	Current   raster.PixelBuffer
	Loaded    bool
	CreatedAt time.Time

	lastUsed time.Time
}

func NewWorkspace(session *editor.Session, now time.Time) *Workspace {
	return &Workspace{
		ID:        session.ID(),
		Editor:    session,
		CreatedAt: now,
		lastUsed:  now,
	}
}

// Touch records activity; callers hold the lock.
func (w *Workspace) Touch(now time.Time) {
	w.lastUsed = now
}

func (w *Workspace) idleSince(t time.Time) bool {
	w.Lock()
	defer w.Unlock()
	return w.lastUsed.Before(t)
}
