// overlay_compositor.go - Track-ordered overlay painting

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

/*
overlay_compositor.go - Overlay compositor

Paints the text/shape entities active at a time point around the composited
video stack. Track index order is semantically meaningful: index 0 is the
topmost lane. Overlay tracks indexed after the last video/image track sit
under the video stack ("below" pass, painted before video so video occludes
them); tracks indexed before the first video/image track sit on top ("above"
pass). With no video present, a single "all" pass paints every overlay track
in index-descending order so the lowest index lands last and topmost.

The two-pass split lets authors place text either behind or in front of the
video stack without the compositor interleaving rasterization with decode.
*/

package main

import "image"

// Overlay paint modes.
type OverlayMode int

const (
	OverlayBelowVideo OverlayMode = iota
	OverlayAboveVideo
	OverlayAll
)

// OverlayCompositor resolves overlay draw order and invokes the opaque
// rasterizers. It holds no per-frame state.
type OverlayCompositor struct {
	raster OverlayRasterizer
}

func NewOverlayCompositor(raster OverlayRasterizer) *OverlayCompositor {
	return &OverlayCompositor{raster: raster}
}

// visualTrackRange returns the index range [lowest, highest] occupied by
// visible video/image tracks, or ok=false when none are present.
func visualTrackRange(tracks []*Track) (lowest, highest int, ok bool) {
	lowest, highest = -1, -1
	for i, tr := range tracks {
		if tr.Hidden || !tr.Kind.IsVisual() {
			continue
		}
		if lowest < 0 {
			lowest = i
		}
		highest = i
	}
	return lowest, highest, lowest >= 0
}

// PaintOverlays draws each overlay track selected by mode onto dst, at time
// t. Entities within one track keep insertion order.
func (oc *OverlayCompositor) PaintOverlays(dst *image.RGBA, tracks []*Track, t float64, mode OverlayMode) {
	lowest, highest, haveVideo := visualTrackRange(tracks)

	switch mode {
	case OverlayAll:
		// Index-descending so the lowest index paints last (topmost).
		for i := len(tracks) - 1; i >= 0; i-- {
			oc.paintTrack(dst, tracks[i], t)
		}
	case OverlayBelowVideo:
		if !haveVideo {
			return
		}
		// Tracks after the video stack paint under it, deepest first.
		for i := len(tracks) - 1; i > highest; i-- {
			oc.paintTrack(dst, tracks[i], t)
		}
	case OverlayAboveVideo:
		if !haveVideo {
			oc.PaintOverlays(dst, tracks, t, OverlayAll)
			return
		}
		for i := lowest - 1; i >= 0; i-- {
			oc.paintTrack(dst, tracks[i], t)
		}
	}
}

func (oc *OverlayCompositor) paintTrack(dst *image.RGBA, tr *Track, t float64) {
	if tr.Hidden || !tr.Kind.IsOverlay() {
		return
	}
	switch tr.Kind {
	case TrackText:
		for _, tc := range ActiveTextClips(tr.TextClips, t) {
			_ = oc.raster.RenderTextClip(dst, tc, t-tc.StartTime)
		}
	case TrackShape:
		for _, sc := range ActiveShapeClips(tr.ShapeClips, t) {
			_ = oc.raster.RenderShapeClip(dst, sc, t-sc.StartTime)
		}
	}
}

// PaintSubtitles draws the active subtitles last, above everything.
func (oc *OverlayCompositor) PaintSubtitles(dst *image.RGBA, subtitles []*Subtitle, t float64) {
	for _, s := range ActiveSubtitles(subtitles, t) {
		_ = oc.raster.RenderSubtitle(dst, s)
	}
}
