// project_store.go - In-memory project store

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

package main

import (
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is a self-contained ProjectStore. The demo binary and tests
// use it directly; an application embeds its own store and implements the
// same interface over real project state.
type MemoryStore struct {
	mu       sync.RWMutex
	timeline *ProjectTimeline
	media    map[string]*MediaItem
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		timeline: &ProjectTimeline{},
		media:    make(map[string]*MediaItem),
	}
}

// ProjectTimeline implements ProjectStore. A shallow snapshot of the track
// list is returned so a render pass iterates a stable slice while edits land.
func (m *MemoryStore) ProjectTimeline() *ProjectTimeline {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tl := *m.timeline
	tl.Tracks = append([]*Track(nil), m.timeline.Tracks...)
	tl.Subtitles = append([]*Subtitle(nil), m.timeline.Subtitles...)
	return &tl
}

// SetTimeline replaces the whole timeline and recomputes its duration from
// the clips when none is set.
func (m *MemoryStore) SetTimeline(tl *ProjectTimeline) {
	if tl.Duration == 0 {
		for _, tr := range tl.Tracks {
			for _, c := range tr.Clips {
				if end := c.EndTime(); end > tl.Duration {
					tl.Duration = end
				}
			}
			for _, tc := range tr.TextClips {
				if end := tc.StartTime + tc.Duration; end > tl.Duration {
					tl.Duration = end
				}
			}
			for _, sc := range tr.ShapeClips {
				if end := sc.StartTime + sc.Duration; end > tl.Duration {
					tl.Duration = end
				}
			}
		}
		for _, s := range tl.Subtitles {
			if s.EndTime > tl.Duration {
				tl.Duration = s.EndTime
			}
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeline = tl
}

// MediaItem implements ProjectStore.
func (m *MemoryStore) MediaItem(mediaID string) (*MediaItem, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.media[mediaID]
	return item, ok
}

// AddMedia registers a media item, generating an id when none is given, and
// returns the id.
func (m *MemoryStore) AddMedia(item *MediaItem) string {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.media[item.ID] = item
	return item.ID
}

// UpdateClipTransform implements ProjectStore.
func (m *MemoryStore) UpdateClipTransform(clipID string, patch TransformPatch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tr := range m.timeline.Tracks {
		for _, c := range tr.Clips {
			if c.ID == clipID {
				c.Transform = patch.Apply(c.Transform)
				return
			}
		}
	}
}

// UpdateTextTransform implements ProjectStore.
func (m *MemoryStore) UpdateTextTransform(textID string, patch TransformPatch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tr := range m.timeline.Tracks {
		for _, tc := range tr.TextClips {
			if tc.ID == textID {
				tc.Transform = patch.Apply(tc.Transform)
				return
			}
		}
	}
}

// UpdateShapeTransform implements ProjectStore.
func (m *MemoryStore) UpdateShapeTransform(shapeID string, patch TransformPatch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tr := range m.timeline.Tracks {
		for _, sc := range tr.ShapeClips {
			if sc.ID == shapeID {
				sc.Transform = patch.Apply(sc.Transform)
				return
			}
		}
	}
}

// UpdateClipKeyframes implements ProjectStore.
func (m *MemoryStore) UpdateClipKeyframes(clipID string, keyframes []Keyframe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tr := range m.timeline.Tracks {
		for _, c := range tr.Clips {
			if c.ID == clipID {
				c.Keyframes = keyframes
				return
			}
		}
	}
}
