// master_clock.go - Shared playback time authority

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

/*
master_clock.go - Master clock

The single authoritative "now" for a playback session. Both the video frame
loop and the audio scheduler read from it rather than keeping their own
counters, which is what keeps picture and sound from drifting apart.

Time derives from a reference position captured at a reference wall-clock
instant; while playing, CurrentTime advances by scaled wall time. The video
path reports observed progress through ReportVideoTime so frame-pacing
jitter re-anchors the clock instead of accumulating.
*/

package main

import (
	"sync"
	"time"
)

type MasterClock struct {
	mu       sync.Mutex
	duration float64
	rate     float64
	playing  bool
	refPos   float64
	refTime  time.Time

	now func() time.Time // test seam
}

func NewMasterClock() *MasterClock {
	return &MasterClock{rate: 1, now: time.Now}
}

func (mc *MasterClock) SetDuration(d float64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if d < 0 {
		d = 0
	}
	mc.duration = d
	if mc.refPos > d {
		mc.refPos = d
	}
}

func (mc *MasterClock) Duration() float64 {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.duration
}

// SetRate changes playback speed without disturbing the current position.
func (mc *MasterClock) SetRate(rate float64) {
	if rate <= 0 {
		rate = 1
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.refPos = mc.positionLocked()
	mc.refTime = mc.now()
	mc.rate = rate
}

func (mc *MasterClock) Rate() float64 {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.rate
}

func (mc *MasterClock) Play() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.playing {
		return
	}
	mc.playing = true
	mc.refTime = mc.now()
}

func (mc *MasterClock) Pause() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if !mc.playing {
		return
	}
	mc.refPos = mc.positionLocked()
	mc.refTime = mc.now()
	mc.playing = false
}

// Stop pauses and resets the playhead to zero.
func (mc *MasterClock) Stop() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.playing = false
	mc.refPos = 0
	mc.refTime = mc.now()
}

func (mc *MasterClock) Seek(t float64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if t < 0 {
		t = 0
	}
	if mc.duration > 0 && t > mc.duration {
		t = mc.duration
	}
	mc.refPos = t
	mc.refTime = mc.now()
}

func (mc *MasterClock) CurrentTime() float64 {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.positionLocked()
}

func (mc *MasterClock) positionLocked() float64 {
	if !mc.playing {
		return mc.refPos
	}
	pos := mc.refPos + mc.now().Sub(mc.refTime).Seconds()*mc.rate
	if mc.duration > 0 && pos > mc.duration {
		return mc.duration
	}
	return pos
}

func (mc *MasterClock) IsPlaying() bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.playing
}

func (mc *MasterClock) IsPaused() bool {
	return !mc.IsPlaying()
}

// ReportVideoTime lets the video path report observed progress. Drift within
// CLOCK_REPORT_DRIFT is jitter and ignored; beyond it the clock re-anchors
// to the video position so audio scheduling follows the picture.
func (mc *MasterClock) ReportVideoTime(t float64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	pos := mc.positionLocked()
	diff := pos - t
	if diff < 0 {
		diff = -diff
	}
	if diff > CLOCK_REPORT_DRIFT {
		mc.refPos = t
		mc.refTime = mc.now()
	}
}
