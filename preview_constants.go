// preview_constants.go - Tunables for the preview pipeline

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

package main

import "time"

const (
	// Output defaults
	PREVIEW_DEFAULT_WIDTH  = 1280
	PREVIEW_DEFAULT_HEIGHT = 720
	PREVIEW_DEFAULT_FPS    = 30

	// Frame decode cache
	VIDEO_CACHE_CAPACITY = 8  // open decode handles, LRU evicted past this
	IMAGE_CACHE_CAPACITY = 32 // decoded stills

	// Seeking
	SEEK_EPSILON_FORWARD  = 0.5  // s ahead we decode through instead of seeking
	SEEK_EPSILON_BACKWARD = 0.04 // s behind target before a re-seek is forced
	STREAM_DRIFT_LIMIT    = 0.1  // s of fast-path drift before corrective seek

	// Bounded waits
	MEDIA_OPEN_TIMEOUT  = 5 * time.Second
	SEEK_SETTLE_TIMEOUT = 500 * time.Millisecond

	// Audio
	AUDIO_SAMPLE_RATE        = 48000
	AUDIO_CHANNELS           = 2
	AUDIO_RESCHEDULE_PERIOD  = 250 * time.Millisecond
	AUDIO_LINKED_CLIP_WINDOW = 0.010 // s start-time slack for linked effects

	// Clock reconciliation
	CLOCK_REPORT_DRIFT = 0.050 // s before a video time report re-anchors

	// Transitions
	WIPE_DEFAULT_SOFTNESS = 0.05 // band fraction when a wipe carries no softness

	// Live interaction
	LIVE_COMMIT_THROTTLE = 32 * time.Millisecond // ~30Hz store commits
)

// Backdrop styles painted under the layer stack
const (
	BACKDROP_BLACK = iota
	BACKDROP_CHECKER

	BACKDROP_CHECKER_CELL = 16 // px
)
