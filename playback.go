// playback.go - Playback orchestrator and frame pipeline

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

/*
The orchestrator owns the render tick. Each tick samples the master clock,
gathers the source frame of every visible visual lane, resolves transforms,
submits the layer stack to the render backend and hands the composited frame
to the sink.

Two source strategies exist. The composite path opens seekable decode handles
through the source cache and works for any timeline. The fast path keeps one
continuous forward decoder on a single video lane and samples it per tick,
avoiding the per-tick seek cost; it engages only when the timeline shape
allows it and falls back seamlessly when it stops applying.
*/

package main

import (
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"
)

// Playback states
const (
	PLAYBACK_STOPPED = iota
	PLAYBACK_PAUSED
	PLAYBACK_PLAYING
)

// layerJob is one visual lane's work item for a tick: fetched concurrently,
// painted in lane order.
type layerJob struct {
	trackIndex int
	clip       *Clip
	frame      *image.RGBA
	transform  ResolvedTransform
}

// PlaybackEngine drives the preview render loop against the master clock.
type PlaybackEngine struct {
	svc     Services
	clock   *MasterClock
	cache   *SourceCache
	overlay *OverlayCompositor
	factory DecoderFactory
	sink    FrameSink

	width  int
	height int
	fps    int

	mu          sync.Mutex
	backend     RenderBackend
	backendKind int
	state       int
	loop        bool
	backdrop    int
	suspended   bool
	recovered   bool

	stream       StreamDecoder
	streamClipID string

	onPlayhead func(t float64)

	done chan struct{}
	wg   sync.WaitGroup
}

func NewPlaybackEngine(svc Services, clock *MasterClock, cache *SourceCache, factory DecoderFactory, sink FrameSink, width, height, fps int, forceSoftware bool) *PlaybackEngine {
	svc = svc.normalized()
	backend, kind := ProbeRenderBackend(width, height, forceSoftware)
	svc.Log.Info().Str("backend", backend.Name()).Msg("render backend selected")
	return &PlaybackEngine{
		svc:         svc,
		clock:       clock,
		cache:       cache,
		overlay:     NewOverlayCompositor(svc.Raster),
		factory:     factory,
		sink:        sink,
		width:       width,
		height:      height,
		fps:         fps,
		backend:     backend,
		backendKind: kind,
		state:       PLAYBACK_STOPPED,
	}
}

func (e *PlaybackEngine) State() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *PlaybackEngine) BackendName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backend.Name()
}

// SetLoop toggles wrap-around at the end of the timeline.
func (e *PlaybackEngine) SetLoop(loop bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loop = loop
}

// SetBackdrop selects the clear style painted under the layer stack.
func (e *PlaybackEngine) SetBackdrop(style int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.backdrop = style
}

// SetPlayheadListener registers the per-tick playhead observer. Called from
// the render goroutine; keep it cheap.
func (e *PlaybackEngine) SetPlayheadListener(fn func(t float64)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onPlayhead = fn
}

// Suspend pauses render-on-change refreshes during a live drag; the dragging
// side renders explicitly with RenderFrameAt.
func (e *PlaybackEngine) Suspend(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.suspended = on
}

// Play starts (or resumes) the render tick loop.
func (e *PlaybackEngine) Play() {
	e.mu.Lock()
	if e.state == PLAYBACK_PLAYING {
		e.mu.Unlock()
		return
	}
	if tl := e.svc.Store.ProjectTimeline(); tl != nil {
		e.clock.SetDuration(tl.Duration)
	}
	e.state = PLAYBACK_PLAYING
	e.done = make(chan struct{})
	done := e.done
	e.mu.Unlock()

	e.clock.Play()

	e.wg.Add(1)
	go e.tickLoop(done)
}

func (e *PlaybackEngine) tickLoop(done chan struct{}) {
	defer e.wg.Done()
	interval := time.Second / time.Duration(e.fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *PlaybackEngine) tick() {
	t := e.clock.CurrentTime()
	dur := e.clock.Duration()

	if dur > 0 && t >= dur {
		if e.loopEnabled() {
			e.clock.Seek(0)
			t = 0
		} else {
			// Pause joins this goroutine, so it must run elsewhere.
			e.clock.Pause()
			e.clock.Seek(0)
			e.notifyPlayhead(0)
			go e.Pause()
			return
		}
	}

	tl := e.svc.Store.ProjectTimeline()
	if tl == nil {
		return
	}

	// Skip dead air between clips instead of rendering black through it.
	// Audio-only stretches are not dead air; the scheduler is playing them.
	if !tl.HasContentAt(t) {
		next := tl.NextContentStart(t)
		switch {
		case next > t && (dur <= 0 || next < dur):
			e.clock.Seek(next)
			t = next
		case next < 0:
			// Nothing left anywhere on the timeline: normal stop.
			// Stop joins this goroutine, so it must run elsewhere.
			e.clock.Pause()
			go e.Stop()
			return
		}
	}

	e.reconcileFastPath(tl, t)

	if err := e.renderFrame(tl, t); err != nil {
		e.svc.Log.Warn().Err(err).Float64("t", t).Msg("frame dropped")
	} else {
		e.clock.ReportVideoTime(t)
	}
	e.notifyPlayhead(t)
}

func (e *PlaybackEngine) loopEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loop
}

func (e *PlaybackEngine) notifyPlayhead(t float64) {
	e.mu.Lock()
	fn := e.onPlayhead
	e.mu.Unlock()
	if fn != nil {
		fn(t)
	}
}

// Pause halts the tick loop, leaving the playhead in place and the last frame
// on screen.
func (e *PlaybackEngine) Pause() {
	e.mu.Lock()
	if e.state != PLAYBACK_PLAYING {
		e.mu.Unlock()
		return
	}
	e.state = PLAYBACK_PAUSED
	close(e.done)
	e.mu.Unlock()

	e.wg.Wait()
	e.clock.Pause()
	e.stopStream()
}

// Stop halts playback and resets the playhead to the start.
func (e *PlaybackEngine) Stop() {
	e.Pause()
	e.mu.Lock()
	e.state = PLAYBACK_STOPPED
	e.mu.Unlock()
	e.clock.Stop()
	e.notifyPlayhead(0)
}

// Seek moves the playhead. While paused or stopped the frame at the new
// position renders immediately; while playing the next tick picks it up.
func (e *PlaybackEngine) Seek(t float64) {
	e.clock.Seek(t)
	e.stopStream()
	if e.State() != PLAYBACK_PLAYING {
		e.RefreshFrame()
	}
	e.notifyPlayhead(e.clock.CurrentTime())
}

// RefreshFrame re-renders the current position outside the tick loop. Used
// after edits while paused; no-op while suspended for a live drag.
func (e *PlaybackEngine) RefreshFrame() {
	e.mu.Lock()
	suspended := e.suspended
	e.mu.Unlock()
	if suspended {
		return
	}
	e.RenderFrameAt(e.clock.CurrentTime())
}

// RenderFrameAt renders the frame at an arbitrary time through the full
// composite path. This is the scrub entry point.
func (e *PlaybackEngine) RenderFrameAt(t float64) {
	tl := e.svc.Store.ProjectTimeline()
	if tl == nil {
		return
	}
	if err := e.renderFrame(tl, t); err != nil {
		e.svc.Log.Warn().Err(err).Float64("t", t).Msg("scrub frame dropped")
	}
}

// Close stops playback and releases the render backend.
func (e *PlaybackEngine) Close() {
	e.Pause()
	e.mu.Lock()
	e.state = PLAYBACK_STOPPED
	backend := e.backend
	e.mu.Unlock()
	if backend != nil {
		backend.Destroy()
	}
}

// fastPathClip returns the clip eligible for the continuous-decode fast path
// at time t, or nil. Eligible means: exactly one visible video lane has an
// active clip, that clip plays forward at 1x, no transition overlap covers t,
// and no visual lane above it shows anything. Overlay lanes never disqualify;
// image lanes below the video are composited behind it either way.
func (e *PlaybackEngine) fastPathClip(tl *ProjectTimeline, t float64) *Clip {
	var clip *Clip
	videoLane := -1
	for i, tr := range tl.Tracks {
		if tr.Hidden || !tr.Kind.IsVisual() {
			continue
		}
		active := tr.ActiveClipAt(t)
		if active == nil {
			continue
		}
		if tr.Kind == TrackVideo {
			if clip != nil {
				return nil // a second live video lane
			}
			clip = active
			videoLane = i
		}
	}
	if clip == nil {
		return nil
	}
	// An image lane above the video would paint over the streamed frame.
	for i, tr := range tl.Tracks {
		if i >= videoLane {
			break
		}
		if tr.Hidden || !tr.Kind.IsVisual() || tr.Kind == TrackVideo {
			continue
		}
		if tr.ActiveClipAt(t) != nil {
			return nil
		}
	}
	if e.svc.Speed.ClipSpeed(clip.ID) != 1.0 || e.svc.Speed.IsReverse(clip.ID) {
		return nil
	}
	if DetectTransition(t, tl.Tracks) != nil {
		return nil
	}
	return clip
}

// reconcileFastPath starts or stops the continuous stream decoder to match
// the current eligibility.
func (e *PlaybackEngine) reconcileFastPath(tl *ProjectTimeline, t float64) {
	clip := e.fastPathClip(tl, t)
	if clip == nil {
		e.stopStream()
		return
	}

	e.mu.Lock()
	sameClip := e.stream != nil && e.streamClipID == clip.ID
	e.mu.Unlock()
	if sameClip {
		return
	}
	e.stopStream()

	item, ok := e.svc.Store.MediaItem(clip.MediaID)
	if !ok || item.Type != MediaVideo {
		return
	}
	fs, err := e.factory.OpenStream(item)
	if err != nil {
		e.svc.Log.Debug().Err(err).Str("clip", clip.ID).Msg("fast path unavailable")
		return
	}
	mediaT := clip.InPoint + e.svc.Speed.SourceTimeAtPlaybackTime(clip.ID, clip.LocalTime(t))
	if err := fs.Start(mediaT); err != nil {
		fs.Stop()
		e.svc.Log.Debug().Err(err).Str("clip", clip.ID).Msg("fast path start failed")
		return
	}

	e.mu.Lock()
	e.stream = fs
	e.streamClipID = clip.ID
	e.mu.Unlock()
	e.svc.Log.Debug().Str("clip", clip.ID).Msg("fast path engaged")
}

func (e *PlaybackEngine) stopStream() {
	e.mu.Lock()
	fs := e.stream
	e.stream = nil
	e.streamClipID = ""
	e.mu.Unlock()
	if fs != nil {
		fs.Stop()
	}
}

// sourceFrame fetches the decoded frame for a clip at timeline time t,
// through the fast-path stream when it covers this clip.
func (e *PlaybackEngine) sourceFrame(clip *Clip, t float64) *image.RGBA {
	item, ok := e.svc.Store.MediaItem(clip.MediaID)
	if !ok {
		return nil
	}
	mediaT := clip.InPoint + e.svc.Speed.SourceTimeAtPlaybackTime(clip.ID, clip.LocalTime(t))

	e.mu.Lock()
	fs := e.stream
	streaming := fs != nil && e.streamClipID == clip.ID
	e.mu.Unlock()
	if streaming {
		if frame := fs.FrameFor(mediaT); frame != nil {
			return scaleRGBA(frame, e.width, e.height)
		}
	}
	return e.cache.GetFrame(clip, item, mediaT, e.width, e.height)
}

// renderFrame runs the full composite pipeline for time t. A panic inside
// decode or compositing drops the frame instead of the whole preview.
func (e *PlaybackEngine) renderFrame(tl *ProjectTimeline, t float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PreviewError{
				Operation: "render",
				Details:   fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	jobs := e.gatherLayers(tl, t)

	// Overlays stacked below every video lane become part of the base plate.
	base := image.NewRGBA(image.Rect(0, 0, e.width, e.height))
	e.paintBackdrop(base)
	e.overlay.PaintOverlays(base, tl.Tracks, t, OverlayBelowVideo)

	e.mu.Lock()
	backend := e.backend
	e.mu.Unlock()

	frame, rerr := e.compositeLayers(backend, base, jobs)
	if rerr != nil {
		backend = e.handleDeviceLoss(backend, rerr)
		if backend == nil {
			return rerr
		}
		if frame, rerr = e.compositeLayers(backend, base, jobs); rerr != nil {
			return rerr
		}
	}

	e.overlay.PaintOverlays(frame, tl.Tracks, t, OverlayAboveVideo)
	e.overlay.PaintSubtitles(frame, tl.Subtitles, t)

	return e.sink.Present(frame)
}

// paintBackdrop fills the base plate: opaque black, or the alternating-gray
// checkerboard editors use to show empty output.
func (e *PlaybackEngine) paintBackdrop(dst *image.RGBA) {
	e.mu.Lock()
	style := e.backdrop
	e.mu.Unlock()

	b := dst.Bounds()
	dark := color.RGBA{A: 0xFF}
	light := color.RGBA{A: 0xFF}
	if style == BACKDROP_CHECKER {
		dark = color.RGBA{R: 0x2E, G: 0x2E, B: 0x2E, A: 0xFF}
		light = color.RGBA{R: 0x3C, G: 0x3C, B: 0x3C, A: 0xFF}
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := dark
			if (x/BACKDROP_CHECKER_CELL+y/BACKDROP_CHECKER_CELL)%2 == 1 {
				c = light
			}
			dst.SetRGBA(x, y, c)
		}
	}
}

// gatherLayers fetches every visible visual lane's frame for time t. Fetches
// run concurrently; ordering is restored afterwards, deepest lane first
// (higher track index paints first, lane 0 ends up on top).
func (e *PlaybackEngine) gatherLayers(tl *ProjectTimeline, t float64) []layerJob {
	trans := DetectTransition(t, tl.Tracks)

	var jobs []layerJob
	for i, tr := range tl.Tracks {
		if tr.Hidden || !tr.Kind.IsVisual() {
			continue
		}
		clip := tr.ActiveClipAt(t)
		if clip == nil {
			continue
		}
		jobs = append(jobs, layerJob{trackIndex: i, clip: clip})
	}

	var wg sync.WaitGroup
	for j := range jobs {
		wg.Add(1)
		go func(job *layerJob) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					e.svc.Log.Warn().Interface("panic", r).Str("clip", job.clip.ID).Msg("layer fetch failed")
					job.frame = nil
				}
			}()
			if trans != nil && job.trackIndex == trans.TrackIndex {
				job.frame = e.transitionFrame(trans, t)
				job.clip = trans.ClipB
			} else {
				job.frame = e.sourceFrame(job.clip, t)
			}
			if job.frame != nil {
				job.frame = e.svc.Effects.ApplyEffectsToFrame(job.clip.ID, job.frame)
			}
			job.transform = ResolveTransform(job.clip.Transform, job.clip.Keyframes,
				job.clip.LocalTime(t), job.clip.Duration, job.clip.Emphasis)
		}(&jobs[j])
	}
	wg.Wait()

	// Deepest first.
	for l, r := 0, len(jobs)-1; l < r; l, r = l+1, r-1 {
		jobs[l], jobs[r] = jobs[r], jobs[l]
	}
	return jobs
}

// transitionFrame decodes both sides of an active transition and blends them.
// The blended frame then renders with the incoming clip's transform.
func (e *PlaybackEngine) transitionFrame(trans *ActiveTransition, t float64) *image.RGBA {
	var frameA, frameB *image.RGBA
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		frameA = e.sourceFrame(trans.ClipA, t)
	}()
	go func() {
		defer wg.Done()
		frameB = e.sourceFrame(trans.ClipB, t)
	}()
	wg.Wait()
	return BlendFrames(trans.Descriptor, frameA, frameB, trans.Progress)
}

// compositeLayers submits the base plate and clip layers to the backend and
// reads back the result.
func (e *PlaybackEngine) compositeLayers(backend RenderBackend, base *image.RGBA, jobs []layerJob) (*image.RGBA, error) {
	backend.BeginFrame()
	var textures []int
	defer func() {
		for _, id := range textures {
			backend.ReleaseTexture(id)
		}
	}()

	baseTex, err := backend.CreateTextureFromImage(base)
	if err != nil {
		return nil, err
	}
	textures = append(textures, baseTex)
	if err := backend.RenderLayer(Layer{
		Texture: baseTex,
		Transform: ResolvedTransform{
			X: float64(e.width) / 2, Y: float64(e.height) / 2,
			ScaleX: 1, ScaleY: 1,
			AnchorX: 0.5, AnchorY: 0.5,
			Opacity: 1,
		},
	}); err != nil {
		return nil, err
	}

	for _, job := range jobs {
		if job.frame == nil {
			continue
		}
		tex, err := backend.CreateTextureFromImage(job.frame)
		if err != nil {
			return nil, err
		}
		textures = append(textures, tex)
		if err := backend.RenderLayer(Layer{Texture: tex, Transform: job.transform}); err != nil {
			return nil, err
		}
	}

	return backend.EndFrame()
}

// handleDeviceLoss gives the accelerated backend one recreate attempt, then
// swaps in the software backend for the rest of the session. Returns the
// backend to retry with, or nil when the failure was not device loss.
func (e *PlaybackEngine) handleDeviceLoss(backend RenderBackend, cause error) RenderBackend {
	if !backend.DeviceLost() {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.recovered {
		e.recovered = true
		if backend.RecreateDevice() {
			e.svc.Log.Warn().Err(cause).Msg("render device lost, recreated")
			return e.backend
		}
	}

	e.svc.Log.Error().Err(cause).Msg("render device lost, downgrading to software")
	backend.Destroy()
	sw := NewSoftwareBackend()
	if err := sw.Init(e.width, e.height); err != nil {
		return nil
	}
	e.backend = sw
	e.backendKind = RENDER_BACKEND_SOFTWARE
	return sw
}

// Resize propagates a new output raster size to the backend and sink.
func (e *PlaybackEngine) Resize(width, height int) error {
	e.mu.Lock()
	e.width = width
	e.height = height
	backend := e.backend
	e.mu.Unlock()
	if err := backend.Resize(width, height); err != nil {
		return err
	}
	e.sink.Resize(width, height)
	return nil
}
