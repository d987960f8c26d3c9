//go:build !headless

// preview_window.go - Windowed frame presentation via ebiten

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

package main

import (
	"errors"
	"image"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// PreviewWindow presents composited frames in a desktop window. The render
// tick pushes frames from its own goroutine; the ebiten draw loop pulls the
// newest one. Missing a frame is fine, tearing is not, hence the copy under
// lock.
type PreviewWindow struct {
	mu       sync.Mutex
	frame    *image.RGBA
	dirty    bool
	tex      *ebiten.Image
	width    int
	height   int
	session  *PreviewSession
	quitting bool
}

var errWindowClosed = errors.New("preview window closed")

func NewPreviewWindow(width, height int, title string) *PreviewWindow {
	ebiten.SetWindowSize(width, height)
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(ebiten.SyncWithFPS)
	return &PreviewWindow{width: width, height: height}
}

// AttachSession wires keyboard transport controls to a session.
func (w *PreviewWindow) AttachSession(s *PreviewSession) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.session = s
}

// Present stores the frame for the next draw. Implements FrameSink.
func (w *PreviewWindow) Present(frame *image.RGBA) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.quitting {
		return errWindowClosed
	}
	if w.frame == nil || w.frame.Bounds() != frame.Bounds() {
		w.frame = image.NewRGBA(frame.Bounds())
	}
	copy(w.frame.Pix, frame.Pix)
	w.dirty = true
	return nil
}

// Resize implements FrameSink.
func (w *PreviewWindow) Resize(width, height int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.width = width
	w.height = height
	ebiten.SetWindowSize(width, height)
}

func (w *PreviewWindow) SetFullscreen(on bool) {
	ebiten.SetFullscreen(on)
}

// Run enters the ebiten main loop and blocks until the window closes. Must
// run on the main goroutine.
func (w *PreviewWindow) Run() error {
	err := ebiten.RunGame(w)
	if err != nil && !errors.Is(err, errWindowClosed) {
		return err
	}
	return nil
}

// Quit asks the main loop to exit after the current frame.
func (w *PreviewWindow) Quit() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.quitting = true
}

func (w *PreviewWindow) Update() error {
	w.mu.Lock()
	s := w.session
	quitting := w.quitting
	w.mu.Unlock()
	if quitting {
		return errWindowClosed
	}
	if s == nil {
		return nil
	}

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		s.TogglePlayback()
	case inpututil.IsKeyJustPressed(ebiten.KeyM):
		s.ToggleMute()
	case inpututil.IsKeyJustPressed(ebiten.KeyF):
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	case inpututil.IsKeyJustPressed(ebiten.KeyHome):
		s.Seek(0)
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft):
		s.SeekRelative(-5)
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowRight):
		s.SeekRelative(5)
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		return errWindowClosed
	}
	return nil
}

func (w *PreviewWindow) Draw(screen *ebiten.Image) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.frame == nil {
		return
	}
	b := w.frame.Bounds()
	if w.tex == nil || w.tex.Bounds() != b {
		w.tex = ebiten.NewImage(b.Dx(), b.Dy())
		w.dirty = true
	}
	if w.dirty {
		w.tex.WritePixels(w.frame.Pix)
		w.dirty = false
	}

	// Letterboxed fit.
	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	fw, fh := float64(b.Dx()), float64(b.Dy())
	scale := float64(sw) / fw
	if s := float64(sh) / fh; s < scale {
		scale = s
	}
	op := &ebiten.DrawImageOptions{}
	op.Filter = ebiten.FilterLinear
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate((float64(sw)-fw*scale)/2, (float64(sh)-fh*scale)/2)
	screen.DrawImage(w.tex, op)
}

func (w *PreviewWindow) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth < 1 {
		outsideWidth = 1
	}
	if outsideHeight < 1 {
		outsideHeight = 1
	}
	return outsideWidth, outsideHeight
}
