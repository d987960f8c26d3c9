// overlay_raster.go - Default text/shape/subtitle rasterizers

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

/*
overlay_raster.go - Default overlay rasterizers

The compositor treats text, shape and subtitle rendering as opaque
collaborators; these are the stock implementations, drawing with fogleman/gg
onto the target frame. Font faces are parsed once per (path, size) and
cached; with no font file configured the built-in bitmap face is used.
*/

package main

import (
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// DefaultRasterizer implements OverlayRasterizer with gg.
type DefaultRasterizer struct {
	mu    sync.Mutex
	faces map[string]font.Face
}

func NewDefaultRasterizer() *DefaultRasterizer {
	return &DefaultRasterizer{faces: make(map[string]font.Face)}
}

// face loads and caches a font face. Empty path falls back to the built-in
// face; size is ignored for the bitmap fallback.
func (r *DefaultRasterizer) face(path string, size float64) font.Face {
	if path == "" {
		return basicfont.Face7x13
	}
	key := fmt.Sprintf("%s@%.1f", path, size)
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.faces[key]; ok {
		return f
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return basicfont.Face7x13
	}
	parsed, err := truetype.Parse(data)
	if err != nil {
		return basicfont.Face7x13
	}
	f := truetype.NewFace(parsed, &truetype.Options{Size: size, Hinting: font.HintingFull})
	r.faces[key] = f
	return f
}

// overlayAlpha maps a transform's opacity onto the draw alpha. The zero
// value marks a transform that was never initialised, so it draws opaque.
func overlayAlpha(rt Transform) float64 {
	if rt.Opacity <= 0 {
		return 1
	}
	return clamp01(rt.Opacity)
}

// setOverlayColor sets the context colour from a #RRGGBB string scaled by
// alpha. Missing or unparseable colours fall back to white.
func setOverlayColor(dc *gg.Context, hex string, alpha float64) {
	r, g, b := 1.0, 1.0, 1.0
	if len(hex) == 7 && hex[0] == '#' {
		var pr, pg, pb uint8
		if _, err := fmt.Sscanf(hex[1:], "%02x%02x%02x", &pr, &pg, &pb); err == nil {
			r, g, b = float64(pr)/255, float64(pg)/255, float64(pb)/255
		}
	}
	dc.SetRGBA(r, g, b, alpha)
}

// RenderTextClip draws a text entity with its transform applied. Rotation
// and scale run through gg's matrix stack so overlay placement matches the
// video-layer transform semantics.
func (r *DefaultRasterizer) RenderTextClip(dst *image.RGBA, tc *TextClip, _ float64) error {
	if tc.Text == "" {
		return nil
	}
	dc := gg.NewContextForRGBA(dst)
	size := tc.FontSize
	if size <= 0 {
		size = 32
	}
	dc.SetFontFace(r.face(tc.FontPath, size))
	setOverlayColor(dc, tc.Color, overlayAlpha(tc.Transform))

	rt := tc.Transform
	dc.Push()
	dc.Translate(rt.X, rt.Y)
	if rt.Rotation != 0 {
		dc.Rotate(rt.Rotation * math.Pi / 180)
	}
	sx, sy := rt.ScaleX, rt.ScaleY
	if sx == 0 && sy == 0 {
		sx, sy = 1, 1
	}
	dc.Scale(sx, sy)
	dc.DrawStringAnchored(tc.Text, 0, 0, rt.AnchorX, rt.AnchorY)
	dc.Pop()
	return nil
}

// RenderShapeClip draws a vector shape entity.
func (r *DefaultRasterizer) RenderShapeClip(dst *image.RGBA, sc *ShapeClip, _ float64) error {
	w, h := sc.Width, sc.Height
	if w <= 0 || h <= 0 {
		return nil
	}
	dc := gg.NewContextForRGBA(dst)
	rt := sc.Transform

	dc.Push()
	dc.Translate(rt.X, rt.Y)
	if rt.Rotation != 0 {
		dc.Rotate(rt.Rotation * math.Pi / 180)
	}
	sx, sy := rt.ScaleX, rt.ScaleY
	if sx == 0 && sy == 0 {
		sx, sy = 1, 1
	}
	dc.Scale(sx, sy)
	// Anchor-relative origin: shapes are drawn around their anchor point.
	ox := -rt.AnchorX * w
	oy := -rt.AnchorY * h

	switch sc.Shape {
	case ShapeEllipse:
		dc.DrawEllipse(ox+w/2, oy+h/2, w/2, h/2)
	case ShapeLine:
		dc.MoveTo(ox, oy)
		dc.LineTo(ox+w, oy+h)
	default: // ShapeRect
		if rt.BorderRadius > 0 {
			dc.DrawRoundedRectangle(ox, oy, w, h, rt.BorderRadius)
		} else {
			dc.DrawRectangle(ox, oy, w, h)
		}
	}

	alpha := overlayAlpha(rt)
	if sc.Fill != "" && sc.Shape != ShapeLine {
		setOverlayColor(dc, sc.Fill, alpha)
		if sc.Stroke != "" {
			dc.FillPreserve()
		} else {
			dc.Fill()
		}
	}
	if sc.Stroke != "" {
		setOverlayColor(dc, sc.Stroke, alpha)
		lw := sc.StrokeWidth
		if lw <= 0 {
			lw = 1
		}
		dc.SetLineWidth(lw)
		dc.Stroke()
	}
	dc.Pop()
	return nil
}

// RenderSubtitle draws an anchored caption with a translucent backing box.
func (r *DefaultRasterizer) RenderSubtitle(dst *image.RGBA, s *Subtitle) error {
	if s.Text == "" {
		return nil
	}
	b := dst.Bounds()
	w := float64(b.Dx())
	h := float64(b.Dy())

	dc := gg.NewContextForRGBA(dst)
	size := s.FontSize
	if size <= 0 {
		size = 24
	}
	dc.SetFontFace(r.face("", size))

	margin := s.MarginY
	if margin <= 0 {
		margin = 40
	}
	var y float64
	switch s.Anchor {
	case "top":
		y = margin
	case "center":
		y = h / 2
	default: // bottom
		y = h - margin
	}

	tw, th := dc.MeasureString(s.Text)
	pad := 8.0
	dc.SetRGBA(0, 0, 0, 0.55)
	dc.DrawRoundedRectangle(w/2-tw/2-pad, y-th/2-pad, tw+2*pad, th+2*pad, 4)
	dc.Fill()

	if s.Color != "" {
		dc.SetHexColor(s.Color)
	} else {
		dc.SetRGB(1, 1, 1)
	}
	dc.DrawStringAnchored(s.Text, w/2, y, 0.5, 0.5)
	return nil
}
