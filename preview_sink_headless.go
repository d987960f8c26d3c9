// preview_sink_headless.go - Frame sink for windowless use

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

package main

import (
	"image"
	"sync"
)

// SnapshotSink retains the most recent composited frame. Used by headless
// runs and by tests that assert on pipeline output.
type SnapshotSink struct {
	mu     sync.Mutex
	frame  *image.RGBA
	frames int
	width  int
	height int
}

func NewSnapshotSink() *SnapshotSink {
	return &SnapshotSink{}
}

// Present implements FrameSink.
func (s *SnapshotSink) Present(frame *image.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil || s.frame.Bounds() != frame.Bounds() {
		s.frame = image.NewRGBA(frame.Bounds())
	}
	copy(s.frame.Pix, frame.Pix)
	s.frames++
	return nil
}

// Resize implements FrameSink.
func (s *SnapshotSink) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width = width
	s.height = height
}

// Snapshot returns a copy of the last presented frame, or nil before the
// first Present.
func (s *SnapshotSink) Snapshot() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return nil
	}
	out := image.NewRGBA(s.frame.Bounds())
	copy(out.Pix, s.frame.Pix)
	return out
}

// FrameCount reports how many frames have been presented.
func (s *SnapshotSink) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}
