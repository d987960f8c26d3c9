// render_backend.go - Compositing backend abstraction

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

/*
render_backend.go - Render backend abstraction

A capability-negotiated compositing backend. The accelerated backend and the
software raster backend must produce visually equivalent output for the same
layer list (position/scale/rotation/opacity/radius semantics identical) so
scrubbing and playback look the same regardless of which backend is active.

Layers are appended in call order; call order is paint order.
*/

package main

import (
	"image"
	"math"
)

// Layer is one (texture, transform) draw request within a frame.
type Layer struct {
	Texture   int
	Transform ResolvedTransform
}

// RenderBackend composites layer lists into output frames.
type RenderBackend interface {
	Init(width, height int) error

	BeginFrame()
	CreateTextureFromImage(img *image.RGBA) (int, error)
	RenderLayer(layer Layer) error
	EndFrame() (*image.RGBA, error)

	ReleaseTexture(id int)
	Resize(width, height int) error

	// DeviceLost reports an unrecovered device error; RecreateDevice makes
	// the single recovery attempt the orchestrator is allowed.
	DeviceLost() bool
	RecreateDevice() bool

	Name() string
	Destroy()
}

// Predefined render backend types
const (
	RENDER_BACKEND_ACCEL    = iota // GPU compositing (ebiten), windowed builds only
	RENDER_BACKEND_SOFTWARE        // Pure-Go raster fallback
)

// ProbeRenderBackend selects the accelerated backend when the build and host
// support it, otherwise the software backend. forceSoftware skips the probe.
func ProbeRenderBackend(width, height int, forceSoftware bool) (RenderBackend, int) {
	if !forceSoftware {
		if b := newAcceleratedBackend(); b != nil {
			if err := b.Init(width, height); err == nil {
				return b, RENDER_BACKEND_ACCEL
			}
			b.Destroy()
		}
	}
	sw := NewSoftwareBackend()
	_ = sw.Init(width, height)
	return sw, RENDER_BACKEND_SOFTWARE
}

// layerMatrix builds the forward affine transform (texture space -> output
// space) for a layer of texW x texH texels. Both backends derive their
// transform from this one function, which is what keeps them equivalent.
//
// Order: move anchor to origin, scale, rotate, translate to position.
func layerMatrix(rt ResolvedTransform, texW, texH int) (a, b, c, d, e, f float64) {
	ax := rt.AnchorX * float64(texW)
	ay := rt.AnchorY * float64(texH)
	sx, sy := rt.ScaleX, rt.ScaleY
	rad := rt.Rotation * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)

	// | a b c |   x' = a*x + b*y + c
	// | d e f |   y' = d*x + e*y + f
	a = cos * sx
	b = -sin * sy
	d = sin * sx
	e = cos * sy
	c = rt.X - a*ax - b*ay
	f = rt.Y - d*ax - e*ay
	return
}

// cropLayerMatrix builds the draw matrix for a sub-image cut from a full
// texture at texel (x0, y0): the full-texture layerMatrix pre-translated so
// sub-image texel (0,0) lands where full texel (x0, y0) does. This keeps a
// cropped region at its natural position inside the layer quad, matching the
// software backend's crop-window sampling.
func cropLayerMatrix(rt ResolvedTransform, fullW, fullH, x0, y0 int) (a, b, c, d, e, f float64) {
	a, b, c, d, e, f = layerMatrix(rt, fullW, fullH)
	c += a*float64(x0) + b*float64(y0)
	f += d*float64(x0) + e*float64(y0)
	return
}

// invertAffine inverts a 2x3 affine matrix. Returns ok=false for degenerate
// (zero scale) transforms, which render nothing.
func invertAffine(a, b, c, d, e, f float64) (ia, ib, ic, id, ie, iff float64, ok bool) {
	det := a*e - b*d
	if det == 0 {
		return 0, 0, 0, 0, 0, 0, false
	}
	inv := 1 / det
	ia = e * inv
	ib = -b * inv
	id = -d * inv
	ie = a * inv
	ic = -(ia*c + ib*f)
	iff = -(id*c + ie*f)
	return ia, ib, ic, id, ie, iff, true
}
