// frame_cache_test.go - Source cache tests

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

package main

import (
	"fmt"
	"image/color"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func videoClipAndItem(id string) (*Clip, *MediaItem) {
	clip := &Clip{ID: "clip-" + id, MediaID: id, Kind: TrackVideo, Duration: 10}
	item := &MediaItem{ID: id, Path: "/media/" + id + ".mp4", Type: MediaVideo, Duration: 10}
	return clip, item
}

func newTestCache(factory DecoderFactory) (*SourceCache, *fakeTime) {
	c := NewSourceCache(factory, zerolog.Nop())
	ft := newFakeTime()
	c.now = ft.now
	return c, ft
}

func TestSourceCacheReusesOpenHandle(t *testing.T) {
	f := newFakeFactory()
	c, _ := newTestCache(f)
	clip, item := videoClipAndItem("m1")

	for i := 0; i < 5; i++ {
		if frame := c.GetFrame(clip, item, float64(i), 64, 36); frame == nil {
			t.Fatalf("fetch %d: nil frame", i)
		}
	}
	if f.decodes != 1 {
		t.Errorf("opened %d handles, want 1", f.decodes)
	}
}

func TestSourceCacheEvictionBound(t *testing.T) {
	f := newFakeFactory()
	c, ft := newTestCache(f)

	for i := 0; i < VIDEO_CACHE_CAPACITY*2; i++ {
		clip, item := videoClipAndItem(fmt.Sprintf("m%d", i))
		if frame := c.GetFrame(clip, item, 0, 64, 36); frame == nil {
			t.Fatalf("media %d: nil frame", i)
		}
		ft.advance(time.Second)
	}
	if got := c.OpenHandles(); got > VIDEO_CACHE_CAPACITY {
		t.Errorf("open handles = %d, want <= %d", got, VIDEO_CACHE_CAPACITY)
	}
	if got := f.openCount(); got > VIDEO_CACHE_CAPACITY {
		t.Errorf("unreleased decoders = %d, want <= %d", got, VIDEO_CACHE_CAPACITY)
	}
}

func TestSourceCacheEvictsLeastRecentlyUsed(t *testing.T) {
	f := newFakeFactory()
	c, ft := newTestCache(f)

	var items []*MediaItem
	for i := 0; i < VIDEO_CACHE_CAPACITY; i++ {
		clip, item := videoClipAndItem(fmt.Sprintf("m%d", i))
		items = append(items, item)
		c.GetFrame(clip, item, 0, 64, 36)
		ft.advance(time.Second)
	}
	// Touch m0 so m1 becomes the LRU candidate.
	clip0 := &Clip{ID: "c0", MediaID: "m0", Kind: TrackVideo}
	c.GetFrame(clip0, items[0], 1, 64, 36)
	ft.advance(time.Second)

	clipN, itemN := videoClipAndItem("overflow")
	c.GetFrame(clipN, itemN, 0, 64, 36)

	f.mu.Lock()
	m1Released := f.opened[1].released
	m0Released := f.opened[0].released
	f.mu.Unlock()
	if !m1Released {
		t.Error("LRU handle m1 not released on overflow")
	}
	if m0Released {
		t.Error("recently used m0 was evicted")
	}
}

func TestSourceCacheBrokenMediaYieldsNil(t *testing.T) {
	f := newFakeFactory()
	f.broken["bad"] = true
	c, _ := newTestCache(f)
	clip, item := videoClipAndItem("bad")

	if frame := c.GetFrame(clip, item, 0, 64, 36); frame != nil {
		t.Error("expected nil frame for broken media")
	}
	if got := c.OpenHandles(); got != 0 {
		t.Errorf("open handles = %d, want 0", got)
	}
}

func TestSourceCacheDecodeErrorEvictsHandle(t *testing.T) {
	f := newFakeFactory()
	c, _ := newTestCache(f)
	clip, item := videoClipAndItem("m1")

	c.GetFrame(clip, item, 0, 64, 36)
	f.mu.Lock()
	f.opened[0].released = true // induce decode failure on the open handle
	f.mu.Unlock()

	if frame := c.GetFrame(clip, item, 1, 64, 36); frame != nil {
		t.Error("expected nil frame from failing handle")
	}
	if got := c.OpenHandles(); got != 0 {
		t.Errorf("failing handle still cached: %d", got)
	}

	// Next fetch reopens cleanly.
	if frame := c.GetFrame(clip, item, 2, 64, 36); frame == nil {
		t.Error("reopen after failure: nil frame")
	}
}

func TestSourceCacheImageDecodedOnce(t *testing.T) {
	f := newFakeFactory()
	f.colors["img"] = color.RGBA{R: 0xFF, A: 0xFF}
	c, _ := newTestCache(f)
	clip := &Clip{ID: "c", MediaID: "img", Kind: TrackImage, Duration: 5}
	item := &MediaItem{ID: "img", Path: "/media/img.png", Type: MediaImage}

	for i := 0; i < 4; i++ {
		frame := c.GetFrame(clip, item, 0, 64, 36)
		if frame == nil {
			t.Fatal("nil image frame")
		}
		if got := frame.RGBAAt(10, 10); got.R != 0xFF {
			t.Errorf("wrong pixel: %+v", got)
		}
	}
	if f.images != 1 {
		t.Errorf("image decoded %d times, want 1", f.images)
	}
}

func TestSourceCacheInvalidate(t *testing.T) {
	f := newFakeFactory()
	c, _ := newTestCache(f)
	clip, item := videoClipAndItem("m1")

	c.GetFrame(clip, item, 0, 64, 36)
	c.Invalidate("m1")
	if got := c.OpenHandles(); got != 0 {
		t.Errorf("open handles after invalidate = %d, want 0", got)
	}
	c.GetFrame(clip, item, 1, 64, 36)
	if f.decodes != 2 {
		t.Errorf("opened %d handles, want reopen after invalidate", f.decodes)
	}
}

func TestSourceCachePrune(t *testing.T) {
	f := newFakeFactory()
	c, _ := newTestCache(f)
	for _, id := range []string{"keep", "drop"} {
		clip, item := videoClipAndItem(id)
		c.GetFrame(clip, item, 0, 64, 36)
	}
	c.Prune(map[string]bool{"keep": true})
	if got := c.OpenHandles(); got != 1 {
		t.Errorf("open handles after prune = %d, want 1", got)
	}
}

func TestSourceCacheCloseReleasesEverything(t *testing.T) {
	f := newFakeFactory()
	c, _ := newTestCache(f)
	for i := 0; i < 3; i++ {
		clip, item := videoClipAndItem(fmt.Sprintf("m%d", i))
		c.GetFrame(clip, item, 0, 64, 36)
	}
	c.Close()
	if got := f.openCount(); got != 0 {
		t.Errorf("unreleased decoders after close = %d", got)
	}
}
