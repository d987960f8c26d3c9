// playback_test.go - Orchestrator and pipeline tests

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

package main

import (
	"fmt"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fixedSpeed is a SpeedEngine with one global speed/reverse setting.
type fixedSpeed struct {
	speed   float64
	reverse bool
}

func (s fixedSpeed) ClipSpeed(string) float64 { return s.speed }
func (s fixedSpeed) IsReverse(string) bool    { return s.reverse }
func (s fixedSpeed) SourceTimeAtPlaybackTime(_ string, localTime float64) float64 {
	if s.reverse {
		return -localTime * s.speed
	}
	return localTime * s.speed
}

type engineFixture struct {
	engine  *PlaybackEngine
	store   *MemoryStore
	sink    *SnapshotSink
	factory *fakeFactory
	clock   *MasterClock
}

func newEngineFixture(t *testing.T, speed SpeedEngine) *engineFixture {
	t.Helper()
	f := newFakeFactory()
	store := NewMemoryStore()
	clock := NewMasterClock()
	sink := NewSnapshotSink()
	svc := Services{Store: store, Speed: speed, Raster: &recordingRaster{}, Log: zerolog.Nop()}
	engine := NewPlaybackEngine(svc, clock, NewSourceCache(f, zerolog.Nop()), f, sink, 64, 36, 30, true)
	return &engineFixture{engine: engine, store: store, sink: sink, factory: f, clock: clock}
}

func (fx *engineFixture) addVideo(mediaID string, c color.RGBA) {
	fx.factory.colors[mediaID] = c
	fx.store.AddMedia(&MediaItem{ID: mediaID, Path: "/m/" + mediaID + ".mp4", Type: MediaVideo, Duration: 60})
}

func (fx *engineFixture) addImage(mediaID string, c color.RGBA) {
	fx.factory.colors[mediaID] = c
	fx.store.AddMedia(&MediaItem{ID: mediaID, Path: "/m/" + mediaID + ".png", Type: MediaImage})
}

func videoTrack(id, mediaID string, start, dur float64) *Track {
	return &Track{
		ID: id, Kind: TrackVideo,
		Clips: []*Clip{{
			ID: id + "-clip", MediaID: mediaID, Kind: TrackVideo,
			StartTime: start, Duration: dur,
			Transform: DefaultTransform(32, 18),
		}},
	}
}

func imageTrack(id, mediaID string, start, dur float64) *Track {
	return &Track{
		ID: id, Kind: TrackImage,
		Clips: []*Clip{{
			ID: id + "-clip", MediaID: mediaID, Kind: TrackImage,
			StartTime: start, Duration: dur,
			Transform: DefaultTransform(32, 18),
		}},
	}
}

func TestRenderFrameShowsActiveClip(t *testing.T) {
	fx := newEngineFixture(t, nil)
	fx.addVideo("mv", color.RGBA{R: 0xFF, A: 0xFF})
	tl := &ProjectTimeline{Duration: 10, Tracks: []*Track{videoTrack("v1", "mv", 0, 10)}}
	fx.store.SetTimeline(tl)

	if err := fx.engine.renderFrame(tl, 1); err != nil {
		t.Fatalf("renderFrame: %v", err)
	}
	frame := fx.sink.Snapshot()
	if frame == nil {
		t.Fatal("no frame presented")
	}
	if px := frame.RGBAAt(32, 18); px.R != 0xFF {
		t.Errorf("center pixel %+v, want clip color", px)
	}
}

func TestRenderFrameLaneOrder(t *testing.T) {
	fx := newEngineFixture(t, nil)
	fx.addVideo("top", color.RGBA{R: 0xFF, A: 0xFF})
	fx.addVideo("bottom", color.RGBA{B: 0xFF, A: 0xFF})
	tl := &ProjectTimeline{Duration: 10, Tracks: []*Track{
		videoTrack("v1", "top", 0, 10),    // index 0: topmost
		videoTrack("v2", "bottom", 0, 10), // index 1: under it
	}}
	fx.store.SetTimeline(tl)

	if err := fx.engine.renderFrame(tl, 1); err != nil {
		t.Fatalf("renderFrame: %v", err)
	}
	if px := fx.sink.Snapshot().RGBAAt(32, 18); px.R != 0xFF || px.B != 0 {
		t.Errorf("lane 0 should paint on top: %+v", px)
	}
}

func TestRenderFrameBrokenClipDegradesToOtherLanes(t *testing.T) {
	fx := newEngineFixture(t, nil)
	fx.addVideo("good", color.RGBA{B: 0xFF, A: 0xFF})
	fx.addVideo("bad", color.RGBA{R: 0xFF, A: 0xFF})
	fx.factory.broken["bad"] = true
	tl := &ProjectTimeline{Duration: 10, Tracks: []*Track{
		videoTrack("v1", "bad", 0, 10),
		videoTrack("v2", "good", 0, 10),
	}}
	fx.store.SetTimeline(tl)

	if err := fx.engine.renderFrame(tl, 1); err != nil {
		t.Fatalf("renderFrame: %v", err)
	}
	if px := fx.sink.Snapshot().RGBAAt(32, 18); px.B != 0xFF {
		t.Errorf("surviving lane missing: %+v", px)
	}
}

func TestRenderFrameVideoToImageSwitch(t *testing.T) {
	fx := newEngineFixture(t, nil)
	fx.addVideo("mv", color.RGBA{R: 0xFF, A: 0xFF})
	fx.addImage("mi", color.RGBA{G: 0xFF, A: 0xFF})
	tl := &ProjectTimeline{Duration: 10, Tracks: []*Track{
		videoTrack("v1", "mv", 0, 5),
		imageTrack("i1", "mi", 5, 5),
	}}
	fx.store.SetTimeline(tl)

	if err := fx.engine.renderFrame(tl, 4); err != nil {
		t.Fatalf("video segment: %v", err)
	}
	if px := fx.sink.Snapshot().RGBAAt(32, 18); px.R != 0xFF {
		t.Errorf("video segment pixel %+v", px)
	}

	if err := fx.engine.renderFrame(tl, 6); err != nil {
		t.Fatalf("image segment: %v", err)
	}
	if px := fx.sink.Snapshot().RGBAAt(32, 18); px.G != 0xFF {
		t.Errorf("image segment pixel %+v", px)
	}
}

func TestRenderFrameTransitionBlend(t *testing.T) {
	fx := newEngineFixture(t, nil)
	fx.addVideo("ma", color.RGBA{R: 0xFF, A: 0xFF})
	fx.addVideo("mb", color.RGBA{B: 0xFF, A: 0xFF})
	a := &Clip{
		ID: "a", MediaID: "ma", Kind: TrackVideo,
		StartTime: 0, Duration: 5,
		Transform:  DefaultTransform(32, 18),
		Transition: &TransitionDescriptor{Type: TransitionCrossfade},
	}
	b := &Clip{
		ID: "b", MediaID: "mb", Kind: TrackVideo,
		StartTime: 4, Duration: 5,
		Transform: DefaultTransform(32, 18),
	}
	tl := &ProjectTimeline{Duration: 10, Tracks: []*Track{
		{ID: "v1", Kind: TrackVideo, Clips: []*Clip{a, b}},
	}}
	fx.store.SetTimeline(tl)

	if err := fx.engine.renderFrame(tl, 4.5); err != nil {
		t.Fatalf("renderFrame: %v", err)
	}
	px := fx.sink.Snapshot().RGBAAt(32, 18)
	if px.R < 100 || px.R > 155 || px.B < 100 || px.B > 155 {
		t.Errorf("overlap midpoint should blend both clips: %+v", px)
	}
}

func TestCheckerboardBackdropOnEmptyOutput(t *testing.T) {
	fx := newEngineFixture(t, nil)
	tl := &ProjectTimeline{Duration: 10}
	fx.store.SetTimeline(tl)
	fx.engine.SetBackdrop(BACKDROP_CHECKER)

	if err := fx.engine.renderFrame(tl, 1); err != nil {
		t.Fatalf("renderFrame: %v", err)
	}
	frame := fx.sink.Snapshot()
	first := frame.RGBAAt(0, 0)
	second := frame.RGBAAt(BACKDROP_CHECKER_CELL, 0)
	if first == second {
		t.Errorf("checker cells not alternating: %+v vs %+v", first, second)
	}
	if first.R == 0 && second.R == 0 {
		t.Error("checkerboard rendered as plain black")
	}
}

func fastPathTimeline() *ProjectTimeline {
	return &ProjectTimeline{Duration: 20, Tracks: []*Track{videoTrack("v1", "mv", 0, 20)}}
}

func TestFastPathSingleVideoLaneEligible(t *testing.T) {
	fx := newEngineFixture(t, nil)
	fx.addVideo("mv", color.RGBA{R: 0xFF, A: 0xFF})
	tl := fastPathTimeline()

	clip := fx.engine.fastPathClip(tl, 1)
	if clip == nil || clip.ID != "v1-clip" {
		t.Fatalf("single video lane should be eligible, got %+v", clip)
	}
}

func TestFastPathOverlayLanesDoNotDisqualify(t *testing.T) {
	fx := newEngineFixture(t, nil)
	fx.addVideo("mv", color.RGBA{R: 0xFF, A: 0xFF})
	tl := fastPathTimeline()
	tl.Tracks = append([]*Track{{
		ID: "text-1", Kind: TrackText,
		TextClips: []*TextClip{{ID: "t", StartTime: 0, Duration: 20}},
	}}, tl.Tracks...)

	if clip := fx.engine.fastPathClip(tl, 1); clip == nil {
		t.Error("overlay lane above video should not disqualify the fast path")
	}
}

func TestFastPathImageLanePlacementMatters(t *testing.T) {
	fx := newEngineFixture(t, nil)
	fx.addVideo("mv", color.RGBA{R: 0xFF, A: 0xFF})
	fx.addImage("mi", color.RGBA{G: 0xFF, A: 0xFF})

	// Image lane below the video: eligible.
	below := &ProjectTimeline{Duration: 20, Tracks: []*Track{
		videoTrack("v1", "mv", 0, 20),
		imageTrack("i1", "mi", 0, 20),
	}}
	if clip := fx.engine.fastPathClip(below, 1); clip == nil {
		t.Error("image lane under the video should not disqualify")
	}

	// Image lane above the video: it paints over the stream, not eligible.
	above := &ProjectTimeline{Duration: 20, Tracks: []*Track{
		imageTrack("i1", "mi", 0, 20),
		videoTrack("v1", "mv", 0, 20),
	}}
	if clip := fx.engine.fastPathClip(above, 1); clip != nil {
		t.Error("image lane over the video must disqualify")
	}
}

func TestFastPathDisqualifiers(t *testing.T) {
	fx := newEngineFixture(t, nil)
	fx.addVideo("mv", color.RGBA{R: 0xFF, A: 0xFF})
	fx.addVideo("mv2", color.RGBA{B: 0xFF, A: 0xFF})

	two := &ProjectTimeline{Duration: 20, Tracks: []*Track{
		videoTrack("v1", "mv", 0, 20),
		videoTrack("v2", "mv2", 0, 20),
	}}
	if clip := fx.engine.fastPathClip(two, 1); clip != nil {
		t.Error("two live video lanes must disqualify")
	}

	slow := newEngineFixture(t, fixedSpeed{speed: 0.5})
	slow.addVideo("mv", color.RGBA{R: 0xFF, A: 0xFF})
	if clip := slow.engine.fastPathClip(fastPathTimeline(), 1); clip != nil {
		t.Error("non-unit speed must disqualify")
	}

	rev := newEngineFixture(t, fixedSpeed{speed: 1, reverse: true})
	rev.addVideo("mv", color.RGBA{R: 0xFF, A: 0xFF})
	if clip := rev.engine.fastPathClip(fastPathTimeline(), 1); clip != nil {
		t.Error("reverse playback must disqualify")
	}

	trans := fastPathTimeline()
	trans.Tracks[0].Clips[0].Duration = 5
	trans.Tracks[0].Clips[0].Transition = &TransitionDescriptor{Type: TransitionCrossfade}
	trans.Tracks[0].Clips = append(trans.Tracks[0].Clips, &Clip{
		ID: "next", MediaID: "mv", Kind: TrackVideo,
		StartTime: 4, Duration: 5, Transform: DefaultTransform(32, 18),
	})
	if clip := fx.engine.fastPathClip(trans, 4.5); clip != nil {
		t.Error("transition overlap must disqualify")
	}
}

func TestReconcileFastPathLifecycle(t *testing.T) {
	fx := newEngineFixture(t, nil)
	fx.addVideo("mv", color.RGBA{R: 0xFF, A: 0xFF})
	fx.addVideo("mv2", color.RGBA{B: 0xFF, A: 0xFF})
	tl := &ProjectTimeline{Duration: 30, Tracks: []*Track{
		videoTrack("v1", "mv", 0, 10),
		videoTrack("v2", "mv2", 8, 10), // overlap disables the path at t in [8, 10)
	}}
	fx.store.SetTimeline(tl)

	fx.engine.reconcileFastPath(tl, 1)
	fx.factory.mu.Lock()
	streams := len(fx.factory.streams)
	fx.factory.mu.Unlock()
	if streams != 1 {
		t.Fatalf("stream not opened: %d", streams)
	}

	// Same clip: the stream is reused, not reopened.
	fx.engine.reconcileFastPath(tl, 2)
	fx.factory.mu.Lock()
	streams = len(fx.factory.streams)
	fx.factory.mu.Unlock()
	if streams != 1 {
		t.Errorf("stream reopened for same clip: %d", streams)
	}

	// Two live lanes: the path must disengage.
	fx.engine.reconcileFastPath(tl, 9)
	fx.factory.mu.Lock()
	stopped := fx.factory.streams[0].stopped
	fx.factory.mu.Unlock()
	if !stopped {
		t.Error("stream not stopped when eligibility ended")
	}
}

func TestTickSkipsGapsToNextContent(t *testing.T) {
	fx := newEngineFixture(t, nil)
	fx.addVideo("mv", color.RGBA{R: 0xFF, A: 0xFF})
	tl := &ProjectTimeline{Duration: 20, Tracks: []*Track{videoTrack("v1", "mv", 5, 10)}}
	fx.store.SetTimeline(tl)
	fx.clock.SetDuration(20)
	fx.clock.Seek(1)

	fx.engine.tick()

	if got := fx.clock.CurrentTime(); got < 5 {
		t.Errorf("playhead %v, want skip to content at 5", got)
	}
	if fx.sink.FrameCount() == 0 {
		t.Error("no frame rendered after gap skip")
	}
}

func TestTickHoldsThroughAudioOnlyStretch(t *testing.T) {
	fx := newEngineFixture(t, nil)
	fx.addVideo("mv", color.RGBA{R: 0xFF, A: 0xFF})
	tl := &ProjectTimeline{Duration: 20, Tracks: []*Track{
		videoTrack("v1", "mv", 10, 10),
		{ID: "audio-1", Kind: TrackAudio, Clips: []*Clip{
			{ID: "music", MediaID: "ma", Kind: TrackAudio, StartTime: 0, Duration: 10},
		}},
	}}
	fx.store.SetTimeline(tl)
	fx.clock.SetDuration(20)
	fx.clock.Seek(1)

	fx.engine.tick()

	if got := fx.clock.CurrentTime(); got != 1 {
		t.Errorf("playhead jumped to %v during scheduled audio, want 1", got)
	}
}

func TestTickStopsWhenNothingRemains(t *testing.T) {
	fx := newEngineFixture(t, nil)
	fx.addVideo("mv", color.RGBA{R: 0xFF, A: 0xFF})
	tl := &ProjectTimeline{Duration: 10, Tracks: []*Track{videoTrack("v1", "mv", 0, 2)}}
	fx.store.SetTimeline(tl)
	fx.clock.SetDuration(10)
	fx.clock.Seek(5)

	fx.engine.tick()

	deadline := time.Now().Add(2 * time.Second)
	for fx.clock.CurrentTime() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := fx.clock.CurrentTime(); got != 0 {
		t.Errorf("playhead = %v, want reset to 0 when nothing remains", got)
	}
	if fx.sink.FrameCount() != 0 {
		t.Error("frame rendered past the last clip")
	}
}

func TestPlaybackStopsAtEndAndResets(t *testing.T) {
	fx := newEngineFixture(t, nil)
	fx.addVideo("mv", color.RGBA{R: 0xFF, A: 0xFF})
	fx.store.SetTimeline(&ProjectTimeline{Duration: 0.15, Tracks: []*Track{videoTrack("v1", "mv", 0, 0.15)}})

	fx.engine.Play()
	deadline := time.Now().Add(2 * time.Second)
	for fx.engine.State() == PLAYBACK_PLAYING && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := fx.engine.State(); got != PLAYBACK_PAUSED {
		t.Fatalf("state = %d, want paused at end of timeline", got)
	}
	if got := fx.clock.CurrentTime(); got != 0 {
		t.Errorf("playhead = %v, want reset to 0", got)
	}
}

func TestPlaybackLoopWrapsAround(t *testing.T) {
	fx := newEngineFixture(t, nil)
	fx.addVideo("mv", color.RGBA{R: 0xFF, A: 0xFF})
	fx.store.SetTimeline(&ProjectTimeline{Duration: 0.15, Tracks: []*Track{videoTrack("v1", "mv", 0, 0.15)}})
	fx.engine.SetLoop(true)

	fx.engine.Play()
	time.Sleep(500 * time.Millisecond)
	if got := fx.engine.State(); got != PLAYBACK_PLAYING {
		t.Errorf("state = %d, want still playing with loop on", got)
	}
	fx.engine.Pause()
}

func TestSeekWhilePausedRendersImmediately(t *testing.T) {
	fx := newEngineFixture(t, nil)
	fx.addVideo("mv", color.RGBA{R: 0xFF, A: 0xFF})
	tl := &ProjectTimeline{Duration: 10, Tracks: []*Track{videoTrack("v1", "mv", 0, 10)}}
	fx.store.SetTimeline(tl)
	fx.clock.SetDuration(10)

	before := fx.sink.FrameCount()
	fx.engine.Seek(3)
	if fx.sink.FrameCount() != before+1 {
		t.Error("paused seek did not render the target frame")
	}
	if got := fx.clock.CurrentTime(); got != 3 {
		t.Errorf("playhead = %v, want 3", got)
	}
}

func TestRenderFrameAtIsSideEffectFree(t *testing.T) {
	fx := newEngineFixture(t, nil)
	fx.addVideo("mv", color.RGBA{R: 0xFF, A: 0xFF})
	tl := &ProjectTimeline{Duration: 10, Tracks: []*Track{videoTrack("v1", "mv", 0, 10)}}
	fx.store.SetTimeline(tl)
	fx.clock.SetDuration(10)
	fx.clock.Seek(2)

	fx.engine.RenderFrameAt(7)
	if got := fx.clock.CurrentTime(); got != 2 {
		t.Errorf("scrub moved the playhead: %v", got)
	}
	if fx.sink.FrameCount() != 1 {
		t.Error("scrub frame not presented")
	}
}

// failingBackend loses its device on EndFrame and cannot recreate.
type failingBackend struct {
	*SoftwareBackend
	lost bool
}

func (b *failingBackend) EndFrame() (*image.RGBA, error) {
	b.lost = true
	return nil, fmt.Errorf("device lost")
}

func (b *failingBackend) DeviceLost() bool     { return b.lost }
func (b *failingBackend) RecreateDevice() bool { return false }

func TestDeviceLossDowngradesToSoftware(t *testing.T) {
	fx := newEngineFixture(t, nil)
	fx.addVideo("mv", color.RGBA{R: 0xFF, A: 0xFF})
	tl := &ProjectTimeline{Duration: 10, Tracks: []*Track{videoTrack("v1", "mv", 0, 10)}}
	fx.store.SetTimeline(tl)

	fb := &failingBackend{SoftwareBackend: NewSoftwareBackend()}
	if err := fb.Init(64, 36); err != nil {
		t.Fatal(err)
	}
	fx.engine.mu.Lock()
	fx.engine.backend = fb
	fx.engine.mu.Unlock()

	if err := fx.engine.renderFrame(tl, 1); err != nil {
		t.Fatalf("renderFrame should recover via downgrade: %v", err)
	}
	if got := fx.engine.BackendName(); got != "software" {
		t.Errorf("backend = %q, want software downgrade", got)
	}
	if fx.sink.FrameCount() == 0 {
		t.Error("no frame presented after downgrade")
	}
}
