package video

import (
	"sync"
	"time"
)

// Store holds the most recently captured frame. The capture loop writes
// it on every frame; readers get a private copy.
type Store struct {
	mu    sync.Mutex
	frame *Frame
	seq   uint64
}

func NewStore() *Store {
	return &Store{}
}

// Put replaces the current frame and returns its sequence number.
func (s *Store) Put(data []byte, width, height int, capturedAt time.Time) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.frame = &Frame{
		Data:       data,
		Width:      width,
		Height:     height,
		CapturedAt: capturedAt,
		Seq:        s.seq,
	}
	return s.seq
}

// Latest returns a copy of the current frame.
func (s *Store) Latest() (*Frame, bool) {
	s.mu.Lock()
	frame := s.frame
	s.mu.Unlock()

	if frame == nil {
		return nil, false
	}
	return frame.Clone(), true
}

// Clear forgets the current frame. Sequence numbers keep increasing.
func (s *Store) Clear() {
	s.mu.Lock()
	s.frame = nil
	s.mu.Unlock()
}
