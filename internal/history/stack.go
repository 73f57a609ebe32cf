// Package history keeps a bounded, in-memory record of prior buffers so
// edits can be undone.
package history

import (
	"errors"

	"github.com/dunamismax/pixeledit/internal/raster"
)

const DefaultCapacity = 10

// ErrEmptyHistory is available to callers that want to report an undo with
// nothing to restore as an error value. Pop itself signals it with false.
var ErrEmptyHistory = errors.New("nothing to undo")

// Stack stores up to capacity snapshots. Pushing onto a full stack drops the
// oldest snapshot; Pop returns the newest. A Stack is not safe for
// concurrent use; callers serialize access.
type Stack struct {
	ring  []raster.PixelBuffer
	start int
	size  int
}

func NewStack(capacity int) *Stack {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Stack{ring: make([]raster.PixelBuffer, capacity)}
}

// Push stores a copy of buf, so later changes to buf never reach the snapshot.
func (s *Stack) Push(buf raster.PixelBuffer) {
	snapshot := buf.Clone()
	if s.size == len(s.ring) {
		s.ring[s.start] = snapshot
		s.start = (s.start + 1) % len(s.ring)
		return
	}
	s.ring[(s.start+s.size)%len(s.ring)] = snapshot
	s.size++
}

func (s *Stack) Pop() (raster.PixelBuffer, bool) {
	if s.size == 0 {
		return raster.PixelBuffer{}, false
	}
	idx := (s.start + s.size - 1) % len(s.ring)
	snapshot := s.ring[idx]
	s.ring[idx] = raster.PixelBuffer{}
	s.size--
	return snapshot, true
}

func (s *Stack) Len() int {
	return s.size
}

func (s *Stack) Cap() int {
	return len(s.ring)
}

func (s *Stack) Clear() {
	clear(s.ring)
	s.start = 0
	s.size = 0
}
