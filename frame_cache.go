// frame_cache.go - Bounded decode-handle and bitmap caches

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

/*
frame_cache.go - Frame decoder / source cache

Obtains a rasterized frame for a clip at a media time, for both image and
video sources:
- Image sources decode once and stay cached per media id.
- Video sources keep a pool of open decode handles keyed by media id, LRU
  evicted past VIDEO_CACHE_CAPACITY. Eviction releases the handle's
  resources deterministically and never removes an entry pinned by an
  in-flight fetch.
- Any decode error evicts the offending entry and yields a nil frame; a nil
  frame means "no visual for this layer this frame", never a crash.
*/

package main

import (
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type videoCacheEntry struct {
	mediaID  string
	dec      ClipDecoder
	lastUsed time.Time
	pins     int
	broken   bool
}

type imageCacheEntry struct {
	img      *image.RGBA
	lastUsed time.Time
}

// SourceCache is the per-session frame source. Mutations happen under one
// mutex because the steady-state render loop and ad-hoc scrub renders share
// it.
type SourceCache struct {
	mu       sync.Mutex
	factory  DecoderFactory
	videos   map[string]*videoCacheEntry
	images   map[string]*imageCacheEntry
	capacity int
	log      zerolog.Logger

	now func() time.Time // test seam
}

func NewSourceCache(factory DecoderFactory, log zerolog.Logger) *SourceCache {
	return &SourceCache{
		factory:  factory,
		videos:   make(map[string]*videoCacheEntry),
		images:   make(map[string]*imageCacheEntry),
		capacity: VIDEO_CACHE_CAPACITY,
		log:      log,
		now:      time.Now,
	}
}

// GetFrame returns the bitmap for clip at the given media time scaled to
// outW x outH, or nil when the layer has no visual this frame.
func (c *SourceCache) GetFrame(clip *Clip, item *MediaItem, mediaTime float64, outW, outH int) *image.RGBA {
	switch clip.Kind {
	case TrackImage:
		return c.imageFrame(item, outW, outH)
	case TrackVideo:
		return c.videoFrame(item, mediaTime, outW, outH)
	}
	return nil
}

func (c *SourceCache) imageFrame(item *MediaItem, outW, outH int) *image.RGBA {
	c.mu.Lock()
	if e, ok := c.images[item.ID]; ok {
		e.lastUsed = c.now()
		img := e.img
		c.mu.Unlock()
		return scaleRGBA(img, outW, outH)
	}
	c.mu.Unlock()

	img, err := c.factory.DecodeImage(item)
	if err != nil {
		c.log.Warn().Err(err).Str("media", item.ID).Msg("image decode failed")
		return nil
	}

	c.mu.Lock()
	c.images[item.ID] = &imageCacheEntry{img: img, lastUsed: c.now()}
	for len(c.images) > IMAGE_CACHE_CAPACITY {
		c.evictOldestImageLocked()
	}
	c.mu.Unlock()
	return scaleRGBA(img, outW, outH)
}

func (c *SourceCache) videoFrame(item *MediaItem, mediaTime float64, outW, outH int) *image.RGBA {
	entry := c.acquire(item)
	if entry == nil {
		return nil
	}
	// Decode outside the lock; the pin keeps eviction away from this entry
	// and per-entry access is serialized by the single render task.
	frame, err := entry.dec.FrameAt(mediaTime, outW, outH)

	c.mu.Lock()
	entry.pins--
	entry.lastUsed = c.now()
	if err != nil {
		entry.broken = true
		c.log.Warn().Err(err).Str("media", entry.mediaID).Msg("frame decode failed, evicting handle")
	}
	if entry.broken && entry.pins == 0 {
		c.releaseLocked(entry)
	}
	c.mu.Unlock()

	if err != nil {
		return nil
	}
	return frame
}

// acquire returns a pinned cache entry for the media item, opening a decode
// handle (and evicting past capacity) as needed.
func (c *SourceCache) acquire(item *MediaItem) *videoCacheEntry {
	c.mu.Lock()
	if e, ok := c.videos[item.ID]; ok && !e.broken {
		e.pins++
		e.lastUsed = c.now()
		c.mu.Unlock()
		return e
	}
	c.mu.Unlock()

	dec, err := c.factory.OpenVideo(item)
	if err != nil {
		c.log.Warn().Err(err).Str("media", item.ID).Msg("decoder open failed")
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.videos[item.ID]; ok && !e.broken {
		// Lost the race with another fetch; keep the existing handle.
		dec.Release()
		e.pins++
		e.lastUsed = c.now()
		return e
	}
	e := &videoCacheEntry{mediaID: item.ID, dec: dec, lastUsed: c.now(), pins: 1}
	c.videos[item.ID] = e
	for len(c.videos) > c.capacity {
		if !c.evictOldestVideoLocked() {
			break // everything pinned; defer eviction
		}
	}
	return e
}

// evictOldestVideoLocked releases the least recently used unpinned handle.
func (c *SourceCache) evictOldestVideoLocked() bool {
	var oldest *videoCacheEntry
	for _, e := range c.videos {
		if e.pins > 0 {
			continue
		}
		if oldest == nil || e.lastUsed.Before(oldest.lastUsed) {
			oldest = e
		}
	}
	if oldest == nil {
		return false
	}
	c.releaseLocked(oldest)
	return true
}

func (c *SourceCache) evictOldestImageLocked() {
	var oldestID string
	var oldest *imageCacheEntry
	for id, e := range c.images {
		if oldest == nil || e.lastUsed.Before(oldest.lastUsed) {
			oldestID, oldest = id, e
		}
	}
	if oldest != nil {
		delete(c.images, oldestID)
	}
}

func (c *SourceCache) releaseLocked(e *videoCacheEntry) {
	delete(c.videos, e.mediaID)
	e.dec.Release()
}

// Invalidate drops any cached state for a media id, e.g. when the owning
// timeline entity disappears.
func (c *SourceCache) Invalidate(mediaID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.videos[mediaID]; ok {
		if e.pins > 0 {
			e.broken = true // released when the in-flight fetch unpins
		} else {
			c.releaseLocked(e)
		}
	}
	delete(c.images, mediaID)
}

// Prune evicts every cached media id missing from valid.
func (c *SourceCache) Prune(valid map[string]bool) {
	c.mu.Lock()
	ids := make([]string, 0, len(c.videos)+len(c.images))
	for id := range c.videos {
		if !valid[id] {
			ids = append(ids, id)
		}
	}
	for id := range c.images {
		if !valid[id] {
			ids = append(ids, id)
		}
	}
	c.mu.Unlock()
	for _, id := range ids {
		c.Invalidate(id)
	}
}

// OpenHandles reports the number of live video decode handles.
func (c *SourceCache) OpenHandles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.videos)
}

// Close releases every decode handle. Image bitmaps survive Close so a
// paused session can resume scrubbing cheaply; call Reset to drop them too.
func (c *SourceCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.videos {
		e.dec.Release()
	}
	c.videos = make(map[string]*videoCacheEntry)
}

// Reset drops all cached state including decoded stills.
func (c *SourceCache) Reset() {
	c.Close()
	c.mu.Lock()
	c.images = make(map[string]*imageCacheEntry)
	c.mu.Unlock()
}
