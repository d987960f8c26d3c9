// transition.go - Clip overlap detection and frame blending

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

/*
transition.go - Transition evaluator

A transition is active only when two adjacent clips on the same lane overlap
in time and a descriptor is attached to that overlap. Blending is linear
over the overlap window. If only one of the two frames decodes, the blend
degrades to that single frame rather than failing the composite.
*/

package main

import "image"

// ActiveTransition describes the overlap the playhead currently sits in.
type ActiveTransition struct {
	TrackIndex int
	ClipA      *Clip // outgoing
	ClipB      *Clip // incoming
	Descriptor TransitionDescriptor
	Progress   float64 // 0 at overlap start, 1 at overlap end
}

// DetectTransition scans the visible visual lanes for an overlap covering
// time t with a transition descriptor attached to the outgoing clip.
func DetectTransition(t float64, tracks []*Track) *ActiveTransition {
	for i, tr := range tracks {
		if tr.Hidden || !tr.Kind.IsVisual() {
			continue
		}
		clips := tr.SortedClips()
		for j := 0; j+1 < len(clips); j++ {
			a, b := clips[j], clips[j+1]
			if a.Transition == nil {
				continue
			}
			overlapStart := b.StartTime
			overlapEnd := a.EndTime()
			if overlapEnd <= overlapStart {
				continue // adjacent but not overlapping
			}
			if t < overlapStart || t >= overlapEnd {
				continue
			}
			return &ActiveTransition{
				TrackIndex: i,
				ClipA:      a,
				ClipB:      b,
				Descriptor: *a.Transition,
				Progress:   (t - overlapStart) / (overlapEnd - overlapStart),
			}
		}
	}
	return nil
}

// BlendFrames blends two source frames according to the descriptor. Either
// frame may be nil; the blend degrades to the surviving frame (or nil when
// both are missing).
func BlendFrames(desc TransitionDescriptor, frameA, frameB *image.RGBA, progress float64) *image.RGBA {
	if frameA == nil {
		return frameB
	}
	if frameB == nil {
		return frameA
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	// Mismatched sizes blend over the incoming frame's raster.
	w := frameB.Bounds().Dx()
	h := frameB.Bounds().Dy()
	a := scaleRGBA(frameA, w, h)
	out := image.NewRGBA(image.Rect(0, 0, w, h))

	soft := desc.Softness
	if soft <= 0 {
		soft = WIPE_DEFAULT_SOFTNESS
	}

	switch desc.Type {
	case TransitionWipeLeft:
		blendWipe(out, a, frameB, progress, soft, func(x, y int) float64 { return float64(w-1-x) / float64(w) })
	case TransitionWipeRight:
		blendWipe(out, a, frameB, progress, soft, func(x, y int) float64 { return float64(x) / float64(w) })
	case TransitionWipeUp:
		blendWipe(out, a, frameB, progress, soft, func(x, y int) float64 { return float64(h-1-y) / float64(h) })
	case TransitionWipeDown:
		blendWipe(out, a, frameB, progress, soft, func(x, y int) float64 { return float64(y) / float64(h) })
	case TransitionDipBlack:
		blendDipToBlack(out, a, frameB, progress)
	default: // crossfade
		blendCrossfade(out, a, frameB, progress)
	}
	return out
}

// blendCrossfade lerps every pixel between the two frames.
func blendCrossfade(out, a, b *image.RGBA, p float64) {
	q := 1 - p
	for i := range out.Pix {
		out.Pix[i] = byte(float64(a.Pix[i])*q + float64(b.Pix[i])*p)
	}
}

// blendWipe reveals frame B where the positional threshold has been passed.
// The edge is softened over a band of width soft so the sweep does not shimmer.
func blendWipe(out, a, b *image.RGBA, p float64, soft float64, pos func(x, y int) float64) {
	w := out.Bounds().Dx()
	h := out.Bounds().Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := out.PixOffset(x, y)
			d := (p - pos(x, y)) / soft
			switch {
			case d <= 0:
				copy(out.Pix[i:i+4], a.Pix[i:i+4])
			case d >= 1:
				copy(out.Pix[i:i+4], b.Pix[i:i+4])
			default:
				q := 1 - d
				out.Pix[i+0] = byte(float64(a.Pix[i+0])*q + float64(b.Pix[i+0])*d)
				out.Pix[i+1] = byte(float64(a.Pix[i+1])*q + float64(b.Pix[i+1])*d)
				out.Pix[i+2] = byte(float64(a.Pix[i+2])*q + float64(b.Pix[i+2])*d)
				out.Pix[i+3] = byte(float64(a.Pix[i+3])*q + float64(b.Pix[i+3])*d)
			}
		}
	}
}

// blendDipToBlack fades A to black over the first half, then black to B.
func blendDipToBlack(out, a, b *image.RGBA, p float64) {
	if p < 0.5 {
		level := 1 - p*2
		scalePix(out, a, level)
	} else {
		level := (p - 0.5) * 2
		scalePix(out, b, level)
	}
}

func scalePix(out, src *image.RGBA, level float64) {
	for i := 0; i < len(out.Pix); i += 4 {
		out.Pix[i+0] = byte(float64(src.Pix[i+0]) * level)
		out.Pix[i+1] = byte(float64(src.Pix[i+1]) * level)
		out.Pix[i+2] = byte(float64(src.Pix[i+2]) * level)
		out.Pix[i+3] = src.Pix[i+3]
	}
}
