// render_software.go - Pure-Go software compositing backend

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

/*
render_software.go - Software raster backend

Pure-Go fallback compositor implementing the RenderBackend interface:
- Inverse-mapped affine layer rasterization (nearest sample)
- Source-over alpha blending with per-layer opacity
- Rounded-corner masking in source space
- Crop windows applied during sampling

The software backend is also the reference implementation for backend
equivalence tests.
*/

package main

import (
	"image"
	"math"
	"sync"
)

// SoftwareBackend composites on the CPU. A session uses it either as the
// probed default (headless builds) or as the permanent downgrade after an
// unrecovered device loss.
type SoftwareBackend struct {
	mutex sync.Mutex

	width, height int
	frame         []byte // RGBA output being composited
	textures      map[int]*image.RGBA
	nextTexture   int
	inFrame       bool
}

func NewSoftwareBackend() *SoftwareBackend {
	return &SoftwareBackend{textures: make(map[int]*image.RGBA), nextTexture: 1}
}

func (sb *SoftwareBackend) Name() string { return "software" }

func (sb *SoftwareBackend) Init(width, height int) error {
	sb.mutex.Lock()
	defer sb.mutex.Unlock()
	if width <= 0 || height <= 0 {
		return &PreviewError{Operation: "backend init", Details: "invalid dimensions"}
	}
	sb.width = width
	sb.height = height
	sb.frame = make([]byte, width*height*4)
	return nil
}

func (sb *SoftwareBackend) BeginFrame() {
	sb.mutex.Lock()
	defer sb.mutex.Unlock()
	for i := range sb.frame {
		sb.frame[i] = 0
	}
	// Opaque black base; empty regions of a preview frame are black.
	for i := 3; i < len(sb.frame); i += 4 {
		sb.frame[i] = 0xFF
	}
	sb.inFrame = true
}

func (sb *SoftwareBackend) CreateTextureFromImage(img *image.RGBA) (int, error) {
	if img == nil {
		return 0, &PreviewError{Operation: "texture create", Details: "nil image"}
	}
	sb.mutex.Lock()
	defer sb.mutex.Unlock()
	id := sb.nextTexture
	sb.nextTexture++
	sb.textures[id] = img
	return id, nil
}

func (sb *SoftwareBackend) ReleaseTexture(id int) {
	sb.mutex.Lock()
	defer sb.mutex.Unlock()
	delete(sb.textures, id)
}

// RenderLayer rasterizes the layer into the current frame immediately;
// since calls arrive in paint order, immediate rasterization preserves the
// draw-list semantics.
func (sb *SoftwareBackend) RenderLayer(layer Layer) error {
	sb.mutex.Lock()
	defer sb.mutex.Unlock()
	if !sb.inFrame {
		return &PreviewError{Operation: "layer render", Details: "RenderLayer outside BeginFrame/EndFrame"}
	}
	tex, ok := sb.textures[layer.Texture]
	if !ok {
		return &PreviewError{Operation: "layer render", Details: "unknown texture"}
	}
	sb.rasterizeLayer(tex, layer.Transform)
	return nil
}

func (sb *SoftwareBackend) rasterizeLayer(tex *image.RGBA, rt ResolvedTransform) {
	texW := tex.Bounds().Dx()
	texH := tex.Bounds().Dy()
	if texW == 0 || texH == 0 || rt.Opacity <= 0 {
		return
	}

	// Crop narrows the sampled source window.
	srcX0, srcY0 := 0.0, 0.0
	srcX1, srcY1 := float64(texW), float64(texH)
	if cr := rt.Crop; cr != nil && cr.W > 0 && cr.H > 0 {
		srcX0 = cr.X * float64(texW)
		srcY0 = cr.Y * float64(texH)
		srcX1 = srcX0 + cr.W*float64(texW)
		srcY1 = srcY0 + cr.H*float64(texH)
	}

	a, b, c, d, e, f := layerMatrix(rt, texW, texH)
	ia, ib, ic, id, ie, iff, ok := invertAffine(a, b, c, d, e, f)
	if !ok {
		return
	}

	// Destination bounding box from the four transformed source corners.
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range [4][2]float64{{srcX0, srcY0}, {srcX1, srcY0}, {srcX0, srcY1}, {srcX1, srcY1}} {
		x := a*p[0] + b*p[1] + c
		y := d*p[0] + e*p[1] + f
		minX = math.Min(minX, x)
		minY = math.Min(minY, y)
		maxX = math.Max(maxX, x)
		maxY = math.Max(maxY, y)
	}
	x0 := clampInt(int(math.Floor(minX)), 0, sb.width)
	y0 := clampInt(int(math.Floor(minY)), 0, sb.height)
	x1 := clampInt(int(math.Ceil(maxX))+1, 0, sb.width)
	y1 := clampInt(int(math.Ceil(maxY))+1, 0, sb.height)

	// Radius operates in source space; convert from output px by the mean
	// scale so both backends agree.
	radius := 0.0
	if rt.BorderRadius > 0 {
		meanScale := (math.Abs(rt.ScaleX) + math.Abs(rt.ScaleY)) / 2
		if meanScale > 0 {
			radius = rt.BorderRadius / meanScale
		}
	}

	opacity := rt.Opacity
	stride := tex.Stride
	pix := tex.Pix

	for dy := y0; dy < y1; dy++ {
		py := float64(dy) + 0.5
		rowBase := dy * sb.width * 4
		for dx := x0; dx < x1; dx++ {
			px := float64(dx) + 0.5
			sx := ia*px + ib*py + ic
			sy := id*px + ie*py + iff
			if sx < srcX0 || sx >= srcX1 || sy < srcY0 || sy >= srcY1 {
				continue
			}
			if radius > 0 && outsideRoundedRect(sx, sy, srcX0, srcY0, srcX1, srcY1, radius) {
				continue
			}

			tx := int(sx)
			ty := int(sy)
			si := ty*stride + tx*4
			srcA := float64(pix[si+3]) / 255 * opacity
			if srcA <= 0 {
				continue
			}
			di := rowBase + dx*4
			blendPixel(sb.frame[di:di+4], pix[si:si+4], srcA)
		}
	}
}

// blendPixel writes src over dst with the given effective source alpha.
func blendPixel(dst []byte, src []byte, srcA float64) {
	if srcA >= 1 {
		dst[0] = src[0]
		dst[1] = src[1]
		dst[2] = src[2]
		dst[3] = 0xFF
		return
	}
	inv := 1 - srcA
	dst[0] = byte(float64(src[0])*srcA + float64(dst[0])*inv)
	dst[1] = byte(float64(src[1])*srcA + float64(dst[1])*inv)
	dst[2] = byte(float64(src[2])*srcA + float64(dst[2])*inv)
	dstA := srcA + float64(dst[3])/255*inv
	dst[3] = byte(dstA * 255)
}

// outsideRoundedRect tests a source-space point against the rounded-corner
// mask of the sampled window.
func outsideRoundedRect(x, y, x0, y0, x1, y1, r float64) bool {
	w := x1 - x0
	h := y1 - y0
	if r > w/2 {
		r = w / 2
	}
	if r > h/2 {
		r = h / 2
	}
	// Points in the central cross are always inside; only corner regions
	// need the distance test against the corner circle center.
	if (x >= x0+r && x <= x1-r) || (y >= y0+r && y <= y1-r) {
		return false
	}
	cx := math.Max(x0+r, math.Min(x, x1-r))
	cy := math.Max(y0+r, math.Min(y, y1-r))
	dx := x - cx
	dy := y - cy
	return dx*dx+dy*dy > r*r
}

func (sb *SoftwareBackend) EndFrame() (*image.RGBA, error) {
	sb.mutex.Lock()
	defer sb.mutex.Unlock()
	if !sb.inFrame {
		return nil, &PreviewError{Operation: "frame end", Details: "EndFrame outside BeginFrame"}
	}
	sb.inFrame = false
	out := image.NewRGBA(image.Rect(0, 0, sb.width, sb.height))
	copy(out.Pix, sb.frame)
	return out, nil
}

func (sb *SoftwareBackend) Resize(width, height int) error {
	return sb.Init(width, height)
}

// The software backend has no device to lose.
func (sb *SoftwareBackend) DeviceLost() bool     { return false }
func (sb *SoftwareBackend) RecreateDevice() bool { return true }

func (sb *SoftwareBackend) Destroy() {
	sb.mutex.Lock()
	defer sb.mutex.Unlock()
	sb.frame = nil
	sb.textures = make(map[int]*image.RGBA)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
