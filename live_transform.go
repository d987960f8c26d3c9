// live_transform.go - Throttled store commits for drag interactions

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

package main

import (
	"sync"
	"time"
)

// Live interaction target kinds
const (
	LIVE_TARGET_CLIP = iota
	LIVE_TARGET_TEXT
	LIVE_TARGET_SHAPE
)

// LiveTransformController funnels drag-gesture transform updates into the
// project store. Raw pointer events arrive far faster than the store wants
// writes, so commits are throttled to one per LIVE_COMMIT_THROTTLE window and
// a final commit always lands on release. While a gesture is active the
// engine's render-on-change refresh is suspended; the controller renders
// explicitly after each commit instead.
type LiveTransformController struct {
	store  ProjectStore
	engine *PlaybackEngine
	now    func() time.Time

	mu         sync.Mutex
	active     bool
	targetKind int
	targetID   string
	lastCommit time.Time
	pending    *TransformPatch // coalesced, not yet committed
	last       *TransformPatch // newest update seen this gesture
}

func NewLiveTransformController(store ProjectStore, engine *PlaybackEngine) *LiveTransformController {
	return &LiveTransformController{
		store:  store,
		engine: engine,
		now:    time.Now,
	}
}

// Begin opens a gesture on the given target. An already-open gesture on a
// different target is finalized first.
func (lc *LiveTransformController) Begin(targetKind int, targetID string) {
	lc.mu.Lock()
	if lc.active {
		lc.mu.Unlock()
		lc.End()
		lc.mu.Lock()
	}
	lc.active = true
	lc.targetKind = targetKind
	lc.targetID = targetID
	lc.lastCommit = time.Time{}
	lc.pending = nil
	lc.last = nil
	lc.mu.Unlock()

	lc.engine.Suspend(true)
}

// Update records the latest gesture state. The patch reaches the store at
// most once per throttle window; intermediate values are coalesced into the
// most recent one.
func (lc *LiveTransformController) Update(patch TransformPatch) {
	lc.mu.Lock()
	if !lc.active {
		lc.mu.Unlock()
		return
	}
	lc.pending = &patch
	lc.last = &patch
	due := lc.now().Sub(lc.lastCommit) >= LIVE_COMMIT_THROTTLE
	if !due {
		lc.mu.Unlock()
		return
	}
	lc.lastCommit = lc.now()
	lc.pending = nil
	kind, id := lc.targetKind, lc.targetID
	lc.mu.Unlock()

	lc.commit(kind, id, patch)
	lc.engine.RenderFrameAt(lc.engine.clock.CurrentTime())
}

// End closes the gesture: the release always lands one final commit of the
// newest state, even when the throttle already flushed it, and the engine
// resumes render-on-change refreshes.
func (lc *LiveTransformController) End() {
	lc.mu.Lock()
	if !lc.active {
		lc.mu.Unlock()
		return
	}
	lc.active = false
	final := lc.last
	lc.pending = nil
	lc.last = nil
	kind, id := lc.targetKind, lc.targetID
	lc.mu.Unlock()

	if final != nil {
		lc.commit(kind, id, *final)
	}
	lc.engine.Suspend(false)
	lc.engine.RefreshFrame()
}

func (lc *LiveTransformController) commit(kind int, id string, patch TransformPatch) {
	switch kind {
	case LIVE_TARGET_CLIP:
		lc.store.UpdateClipTransform(id, patch)
	case LIVE_TARGET_TEXT:
		lc.store.UpdateTextTransform(id, patch)
	case LIVE_TARGET_SHAPE:
		lc.store.UpdateShapeTransform(id, patch)
	}
}
