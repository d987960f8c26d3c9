//go:build !headless

// render_ebiten.go - GPU-accelerated compositing backend on ebiten

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

/*
render_ebiten.go - Accelerated compositing backend

Composites layer lists on the GPU through ebiten offscreen images. Layer
semantics (position/scale/rotation/opacity/radius) are derived from the same
layerMatrix as the software backend so both produce equivalent output.

Device loss: ebiten surfaces graphics failures as panics from image
operations; every entry point traps them and flips the deviceLost flag. The
orchestrator then makes exactly one RecreateDevice attempt before the
session downgrades permanently to the software backend.
*/

package main

import (
	"image"
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
)

var rgbaBlack = color.RGBA{A: 0xFF}

type ebitenTexture struct {
	gpu *ebiten.Image
	cpu *image.RGBA // retained for radius masking and device recovery
}

// EbitenBackend implements RenderBackend on the GPU.
type EbitenBackend struct {
	mutex sync.Mutex

	width, height int
	offscreen     *ebiten.Image
	textures      map[int]*ebitenTexture
	nextTexture   int
	inFrame       bool
	deviceLost    bool
	recovered     bool // one recovery already spent
}

// newAcceleratedBackend is the probe hook used by ProbeRenderBackend.
func newAcceleratedBackend() RenderBackend {
	return &EbitenBackend{textures: make(map[int]*ebitenTexture), nextTexture: 1}
}

func (eb *EbitenBackend) Name() string { return "ebiten" }

// trap converts a graphics panic into the device-lost state.
func (eb *EbitenBackend) trap(err *error) {
	if r := recover(); r != nil {
		eb.deviceLost = true
		if err != nil {
			*err = &PreviewError{Operation: "gpu", Details: "device lost"}
		}
	}
}

func (eb *EbitenBackend) Init(width, height int) (err error) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()
	defer eb.trap(&err)
	if width <= 0 || height <= 0 {
		return &PreviewError{Operation: "backend init", Details: "invalid dimensions"}
	}
	eb.width = width
	eb.height = height
	eb.offscreen = ebiten.NewImage(width, height)
	return nil
}

func (eb *EbitenBackend) BeginFrame() {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()
	defer eb.trap(nil)
	if eb.offscreen == nil || eb.deviceLost {
		return
	}
	eb.offscreen.Fill(rgbaBlack)
	eb.inFrame = true
}

func (eb *EbitenBackend) CreateTextureFromImage(img *image.RGBA) (id int, err error) {
	if img == nil {
		return 0, &PreviewError{Operation: "texture create", Details: "nil image"}
	}
	eb.mutex.Lock()
	defer eb.mutex.Unlock()
	defer eb.trap(&err)
	if eb.deviceLost {
		return 0, &PreviewError{Operation: "texture create", Details: "device lost"}
	}
	gpu := ebiten.NewImageFromImage(img)
	id = eb.nextTexture
	eb.nextTexture++
	eb.textures[id] = &ebitenTexture{gpu: gpu, cpu: img}
	return id, nil
}

func (eb *EbitenBackend) ReleaseTexture(id int) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()
	defer eb.trap(nil)
	if t, ok := eb.textures[id]; ok {
		t.gpu.Deallocate()
		delete(eb.textures, id)
	}
}

func (eb *EbitenBackend) RenderLayer(layer Layer) (err error) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()
	defer eb.trap(&err)
	if eb.deviceLost {
		return &PreviewError{Operation: "layer render", Details: "device lost"}
	}
	if !eb.inFrame {
		return &PreviewError{Operation: "layer render", Details: "RenderLayer outside BeginFrame/EndFrame"}
	}
	tex, ok := eb.textures[layer.Texture]
	if !ok {
		return &PreviewError{Operation: "layer render", Details: "unknown texture"}
	}

	rt := layer.Transform
	if rt.Opacity <= 0 {
		return nil
	}
	src := tex.gpu
	fullW := tex.cpu.Bounds().Dx()
	fullH := tex.cpu.Bounds().Dy()

	// Crop and rounded corners are resolved on the CPU copy; the draw call
	// itself stays a plain textured quad. The matrix is always derived from
	// the full texture dims so a cropped region keeps its natural position,
	// exactly as the software backend samples it.
	cropX, cropY := 0, 0
	if rt.Crop != nil || rt.BorderRadius > 0 {
		masked, mx, my := maskLayerSource(tex.cpu, rt)
		src = ebiten.NewImageFromImage(masked)
		defer src.Deallocate()
		cropX, cropY = mx, my
	}

	a, b, c, d, e, f := cropLayerMatrix(rt, fullW, fullH, cropX, cropY)
	var opts ebiten.DrawImageOptions
	opts.GeoM.SetElement(0, 0, a)
	opts.GeoM.SetElement(0, 1, b)
	opts.GeoM.SetElement(0, 2, c)
	opts.GeoM.SetElement(1, 0, d)
	opts.GeoM.SetElement(1, 1, e)
	opts.GeoM.SetElement(1, 2, f)
	opts.ColorScale.ScaleAlpha(float32(rt.Opacity))
	opts.Filter = ebiten.FilterLinear

	eb.offscreen.DrawImage(src, &opts)
	return nil
}

func (eb *EbitenBackend) EndFrame() (out *image.RGBA, err error) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()
	defer eb.trap(&err)
	if eb.deviceLost {
		return nil, &PreviewError{Operation: "frame end", Details: "device lost"}
	}
	if !eb.inFrame {
		return nil, &PreviewError{Operation: "frame end", Details: "EndFrame outside BeginFrame"}
	}
	eb.inFrame = false
	out = image.NewRGBA(image.Rect(0, 0, eb.width, eb.height))
	eb.offscreen.ReadPixels(out.Pix)
	return out, nil
}

func (eb *EbitenBackend) Resize(width, height int) error {
	return eb.Init(width, height)
}

func (eb *EbitenBackend) DeviceLost() bool {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()
	return eb.deviceLost
}

// RecreateDevice rebuilds the offscreen target and re-uploads textures from
// their CPU copies. Only one recovery is attempted per session.
func (eb *EbitenBackend) RecreateDevice() (ok bool) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()
	if eb.recovered {
		return false
	}
	eb.recovered = true

	defer func() {
		if r := recover(); r != nil {
			eb.deviceLost = true
			ok = false
		}
	}()
	eb.offscreen = ebiten.NewImage(eb.width, eb.height)
	for _, t := range eb.textures {
		t.gpu = ebiten.NewImageFromImage(t.cpu)
	}
	eb.deviceLost = false
	eb.inFrame = false
	return true
}

func (eb *EbitenBackend) Destroy() {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()
	defer eb.trap(nil)
	for id, t := range eb.textures {
		t.gpu.Deallocate()
		delete(eb.textures, id)
	}
	if eb.offscreen != nil {
		eb.offscreen.Deallocate()
		eb.offscreen = nil
	}
}

// maskLayerSource applies crop and rounded corners to a CPU copy of the
// texture, returning the source actually drawn plus the crop origin within
// the full texture.
func maskLayerSource(src *image.RGBA, rt ResolvedTransform) (*image.RGBA, int, int) {
	b := src.Bounds()
	x0, y0 := 0, 0
	x1, y1 := b.Dx(), b.Dy()
	if cr := rt.Crop; cr != nil && cr.W > 0 && cr.H > 0 {
		x0 = int(cr.X * float64(b.Dx()))
		y0 = int(cr.Y * float64(b.Dy()))
		x1 = x0 + int(cr.W*float64(b.Dx()))
		y1 = y0 + int(cr.H*float64(b.Dy()))
	}
	w := x1 - x0
	h := y1 - y0
	if w <= 0 || h <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1)), 0, 0
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))

	radius := 0.0
	if rt.BorderRadius > 0 {
		meanScale := (abs64(rt.ScaleX) + abs64(rt.ScaleY)) / 2
		if meanScale > 0 {
			radius = rt.BorderRadius / meanScale
		}
	}

	for y := 0; y < h; y++ {
		si := src.PixOffset(x0+b.Min.X, y0+y+b.Min.Y)
		di := out.PixOffset(0, y)
		copy(out.Pix[di:di+w*4], src.Pix[si:si+w*4])
	}
	if radius > 0 {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if outsideRoundedRect(float64(x)+0.5, float64(y)+0.5, 0, 0, float64(w), float64(h), radius) {
					di := out.PixOffset(x, y)
					out.Pix[di+3] = 0
				}
			}
		}
	}
	return out, x0, y0
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
