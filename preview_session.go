// preview_session.go - Session wiring and command surface

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

package main

import (
	"sync"
)

// SessionConfig sets the fixed output parameters of a preview session.
type SessionConfig struct {
	Width         int
	Height        int
	FPS           int
	ForceSoftware bool
	Loop          bool
	Checkerboard  bool // paint empty output as a checkerboard instead of black
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.Width <= 0 {
		c.Width = PREVIEW_DEFAULT_WIDTH
	}
	if c.Height <= 0 {
		c.Height = PREVIEW_DEFAULT_HEIGHT
	}
	if c.FPS <= 0 {
		c.FPS = PREVIEW_DEFAULT_FPS
	}
	return c
}

// PreviewSession owns one preview pipeline end to end: clock, decode caches,
// render engine, audio graph and the live-interaction controller. Commands
// are safe to call from any goroutine.
type PreviewSession struct {
	svc        Services
	cfg        SessionConfig
	clock      *MasterClock
	cache      *SourceCache
	audioCache *AudioBufferCache
	mixer      *AudioMixer
	output     *OtoOutput
	scheduler  *AudioScheduler
	engine     *PlaybackEngine
	live       *LiveTransformController
	sink       FrameSink

	closeOnce sync.Once
	closeErr  error
}

// NewPreviewSession builds a session over the given store-backed services and
// frame sink. The session starts paused at time zero.
func NewPreviewSession(svc Services, sink FrameSink, cfg SessionConfig) (*PreviewSession, error) {
	if svc.Store == nil {
		return nil, &PreviewError{Operation: "session init", Details: "nil project store"}
	}
	svc = svc.normalized()
	cfg = cfg.withDefaults()

	factory := ReisenFactory{}
	clock := NewMasterClock()
	cache := NewSourceCache(factory, svc.Log)
	audioCache := NewAudioBufferCache(factory, svc.Log)
	mixer := NewAudioMixer(clock, svc.Effects)

	output, err := NewOtoOutput()
	if err != nil {
		// Preview without sound beats no preview.
		svc.Log.Warn().Err(err).Msg("audio output unavailable")
		output = nil
	} else {
		output.SetMixer(mixer)
	}

	engine := NewPlaybackEngine(svc, clock, cache, factory, sink, cfg.Width, cfg.Height, cfg.FPS, cfg.ForceSoftware)
	engine.SetLoop(cfg.Loop)
	if cfg.Checkerboard {
		engine.SetBackdrop(BACKDROP_CHECKER)
	}

	s := &PreviewSession{
		svc:        svc,
		cfg:        cfg,
		clock:      clock,
		cache:      cache,
		audioCache: audioCache,
		mixer:      mixer,
		output:     output,
		scheduler:  NewAudioScheduler(mixer, audioCache, svc),
		engine:     engine,
		live:       NewLiveTransformController(svc.Store, engine),
		sink:       sink,
	}

	if tl := svc.Store.ProjectTimeline(); tl != nil {
		clock.SetDuration(tl.Duration)
	}
	return s, nil
}

// Play starts playback from the current playhead.
func (s *PreviewSession) Play() {
	s.engine.Play()
	s.scheduler.StartScheduler()
}

// Pause freezes playback on the current frame.
func (s *PreviewSession) Pause() {
	s.scheduler.StopScheduler()
	s.engine.Pause()
}

// TogglePlayback plays when paused/stopped and pauses when playing.
func (s *PreviewSession) TogglePlayback() {
	if s.engine.State() == PLAYBACK_PLAYING {
		s.Pause()
	} else {
		s.Play()
	}
}

// Stop halts playback and returns the playhead to the start.
func (s *PreviewSession) Stop() {
	s.scheduler.StopScheduler()
	s.engine.Stop()
}

// Seek jumps the playhead. While paused the target frame renders immediately.
func (s *PreviewSession) Seek(t float64) {
	s.engine.Seek(t)
}

// SeekRelative nudges the playhead by dt seconds.
func (s *PreviewSession) SeekRelative(dt float64) {
	s.engine.Seek(s.clock.CurrentTime() + dt)
}

// CurrentTime reports the playhead position.
func (s *PreviewSession) CurrentTime() float64 {
	return s.clock.CurrentTime()
}

// IsPlaying reports whether the tick loop is running.
func (s *PreviewSession) IsPlaying() bool {
	return s.engine.State() == PLAYBACK_PLAYING
}

// SetRate changes the master playback rate.
func (s *PreviewSession) SetRate(rate float64) {
	s.clock.SetRate(rate)
}

// SetLoop toggles wrap-around at the end of the timeline.
func (s *PreviewSession) SetLoop(loop bool) {
	s.engine.SetLoop(loop)
}

// SetMuted silences or restores the master audio output.
func (s *PreviewSession) SetMuted(muted bool) {
	s.mixer.SetMasterMute(muted)
}

// ToggleMute flips the master mute state and reports the new value.
func (s *PreviewSession) ToggleMute() bool {
	muted := !s.mixer.MasterMuted()
	s.mixer.SetMasterMute(muted)
	return muted
}

// SetFullscreen forwards to the sink when it is a window.
func (s *PreviewSession) SetFullscreen(on bool) {
	if w, ok := s.sink.(interface{ SetFullscreen(bool) }); ok {
		w.SetFullscreen(on)
	}
}

// OnPlayhead registers the playhead observer, invoked once per render tick.
func (s *PreviewSession) OnPlayhead(fn func(t float64)) {
	s.engine.SetPlayheadListener(fn)
}

// Live exposes the drag-gesture controller for transform editing.
func (s *PreviewSession) Live() *LiveTransformController {
	return s.live
}

// BeginCropEdit opens a crop drag gesture on a clip.
func (s *PreviewSession) BeginCropEdit(clipID string) {
	s.live.Begin(LIVE_TARGET_CLIP, clipID)
}

// UpdateCrop feeds the current crop window of an open crop gesture.
func (s *PreviewSession) UpdateCrop(crop CropRect) {
	s.live.Update(TransformPatch{Crop: &crop})
}

// EndCropEdit finalizes the crop gesture.
func (s *PreviewSession) EndCropEdit() {
	s.live.End()
}

// RenderFrameAt renders an arbitrary time without moving playback state.
// This is the scrub entry point for timeline hover previews.
func (s *PreviewSession) RenderFrameAt(t float64) {
	s.engine.RenderFrameAt(t)
}

// TimelineEdited tells the session the store's timeline changed. The paused
// frame re-renders and, when playing, audio reschedules without waiting for
// the next periodic pass.
func (s *PreviewSession) TimelineEdited() {
	if tl := s.svc.Store.ProjectTimeline(); tl != nil {
		s.clock.SetDuration(tl.Duration)
	}
	if s.IsPlaying() {
		s.scheduler.Reschedule()
	} else {
		s.engine.RefreshFrame()
	}
}

// MediaChanged invalidates all decoded state for a media id, e.g. after a
// re-import finished at a different resolution.
func (s *PreviewSession) MediaChanged(mediaID string) {
	s.cache.Invalidate(mediaID)
	s.audioCache.Invalidate(mediaID)
	if s.IsPlaying() {
		s.scheduler.Reschedule()
	} else {
		s.engine.RefreshFrame()
	}
}

// Resize changes the output raster size.
func (s *PreviewSession) Resize(width, height int) error {
	return s.engine.Resize(width, height)
}

// Close tears the session down. Idempotent; later calls return the first
// error.
func (s *PreviewSession) Close() error {
	s.closeOnce.Do(func() {
		s.scheduler.StopScheduler()
		s.engine.Close()
		if s.output != nil {
			s.closeErr = s.output.Close()
		}
		s.cache.Close()
		s.audioCache.Reset()
	})
	return s.closeErr
}
