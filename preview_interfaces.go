// preview_interfaces.go - External collaborator contracts for the preview engine

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

package main

import (
	"image"

	"github.com/rs/zerolog"
)

// ProjectStore is the external project/timeline data source. The preview
// engine reads it every frame and writes back only through the narrow
// live-interaction transform setters.
type ProjectStore interface {
	ProjectTimeline() *ProjectTimeline
	MediaItem(mediaID string) (*MediaItem, bool)

	UpdateClipTransform(clipID string, patch TransformPatch)
	UpdateTextTransform(textID string, patch TransformPatch)
	UpdateShapeTransform(shapeID string, patch TransformPatch)
	UpdateClipKeyframes(clipID string, keyframes []Keyframe)
}

// SpeedEngine maps playback-local clip time to media source time, covering
// per-clip speed and reverse playback. Consumed as an opaque engine.
type SpeedEngine interface {
	ClipSpeed(clipID string) float64
	IsReverse(clipID string) bool
	SourceTimeAtPlaybackTime(clipID string, localTime float64) float64
}

// EffectsEngine applies a clip's visual effect chain to a decoded frame and
// processes per-track audio effect chains. Both are opaque to the compositor.
type EffectsEngine interface {
	ApplyEffectsToFrame(clipID string, frame *image.RGBA) *image.RGBA
	ProcessAudio(effect string, samples []float32, sampleRate int)
}

// OverlayRasterizer renders text, shape and subtitle entities onto a target
// frame. Implementations own all styling decisions; the compositor only
// decides ordering.
type OverlayRasterizer interface {
	RenderTextClip(dst *image.RGBA, tc *TextClip, localTime float64) error
	RenderShapeClip(dst *image.RGBA, sc *ShapeClip, localTime float64) error
	RenderSubtitle(dst *image.RGBA, s *Subtitle) error
}

// FrameSink receives the final composited frame of each tick. The windowed
// build presents to the display, the headless build retains a snapshot.
type FrameSink interface {
	Present(frame *image.RGBA) error
	Resize(w, h int)
}

// Services bundles the injected collaborators for one preview session.
// Engines are constructed by the session owner; there are no package-level
// singletons.
type Services struct {
	Store   ProjectStore
	Speed   SpeedEngine
	Effects EffectsEngine
	Raster  OverlayRasterizer
	Log     zerolog.Logger
}

// normalized fills in pass-through defaults for optional engines so pipeline
// code never nil-checks collaborators.
func (s Services) normalized() Services {
	if s.Speed == nil {
		s.Speed = UnitSpeedEngine{}
	}
	if s.Effects == nil {
		s.Effects = PassthroughEffects{}
	}
	if s.Raster == nil {
		s.Raster = NewDefaultRasterizer()
	}
	return s
}

// UnitSpeedEngine is the default speed engine: every clip plays forward at 1x.
type UnitSpeedEngine struct{}

func (UnitSpeedEngine) ClipSpeed(string) float64 { return 1.0 }
func (UnitSpeedEngine) IsReverse(string) bool    { return false }
func (UnitSpeedEngine) SourceTimeAtPlaybackTime(_ string, localTime float64) float64 {
	return localTime
}

// PassthroughEffects is the default effects engine: frames and samples pass
// through untouched.
type PassthroughEffects struct{}

func (PassthroughEffects) ApplyEffectsToFrame(_ string, frame *image.RGBA) *image.RGBA {
	return frame
}
func (PassthroughEffects) ProcessAudio(string, []float32, int) {}

// ActiveTextClips filters the overlay text entities covering time t,
// preserving insertion order.
func ActiveTextClips(all []*TextClip, t float64) []*TextClip {
	var out []*TextClip
	for _, tc := range all {
		if tc.ActiveAt(t) {
			out = append(out, tc)
		}
	}
	return out
}

// ActiveShapeClips filters the overlay shape entities covering time t.
func ActiveShapeClips(all []*ShapeClip, t float64) []*ShapeClip {
	var out []*ShapeClip
	for _, sc := range all {
		if sc.ActiveAt(t) {
			out = append(out, sc)
		}
	}
	return out
}

// ActiveSubtitles filters the subtitles covering time t.
func ActiveSubtitles(all []*Subtitle, t float64) []*Subtitle {
	var out []*Subtitle
	for _, s := range all {
		if s.ActiveAt(t) {
			out = append(out, s)
		}
	}
	return out
}
