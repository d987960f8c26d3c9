// preview_test_helpers_test.go - Shared fakes for preview pipeline tests

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
	"sync"
)

func solidRGBA(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// fakeClipDecoder returns a solid frame of its color for every request and
// records whether it was released.
type fakeClipDecoder struct {
	mu       sync.Mutex
	color    color.RGBA
	released bool
	frames   int
	position float64
}

func (d *fakeClipDecoder) FrameAt(mediaTime float64, outW, outH int) (*image.RGBA, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil, fmt.Errorf("decoder released")
	}
	d.frames++
	d.position = mediaTime
	return solidRGBA(outW, outH, d.color), nil
}

func (d *fakeClipDecoder) Position() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position
}

func (d *fakeClipDecoder) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released = true
}

// fakeStream is a StreamDecoder that produces solid frames.
type fakeStream struct {
	mu       sync.Mutex
	color    color.RGBA
	started  bool
	stopped  bool
	position float64
}

func (s *fakeStream) Start(at float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	s.position = at
	return nil
}

func (s *fakeStream) FrameFor(mediaTime float64) *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.stopped {
		return nil
	}
	s.position = mediaTime
	return solidRGBA(64, 36, s.color)
}

func (s *fakeStream) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

func (s *fakeStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

// fakeFactory is a DecoderFactory with scripted media. Media ids listed in
// broken fail to open.
type fakeFactory struct {
	mu       sync.Mutex
	colors   map[string]color.RGBA
	broken   map[string]bool
	audio    map[string]*AudioBuffer
	opened   []*fakeClipDecoder
	streams  []*fakeStream
	decodes  int
	images   int
	audioGet int
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		colors: make(map[string]color.RGBA),
		broken: make(map[string]bool),
		audio:  make(map[string]*AudioBuffer),
	}
}

func (f *fakeFactory) colorFor(id string) color.RGBA {
	if c, ok := f.colors[id]; ok {
		return c
	}
	return color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF}
}

func (f *fakeFactory) OpenVideo(item *MediaItem) (ClipDecoder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken[item.ID] {
		return nil, fmt.Errorf("open %s: broken", item.ID)
	}
	f.decodes++
	d := &fakeClipDecoder{color: f.colorFor(item.ID)}
	f.opened = append(f.opened, d)
	return d, nil
}

func (f *fakeFactory) OpenStream(item *MediaItem) (StreamDecoder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken[item.ID] {
		return nil, fmt.Errorf("open stream %s: broken", item.ID)
	}
	s := &fakeStream{color: f.colorFor(item.ID)}
	f.streams = append(f.streams, s)
	return s, nil
}

func (f *fakeFactory) DecodeImage(item *MediaItem) (*image.RGBA, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken[item.ID] {
		return nil, fmt.Errorf("decode %s: broken", item.ID)
	}
	f.images++
	return solidRGBA(64, 36, f.colorFor(item.ID)), nil
}

func (f *fakeFactory) DecodeAudio(item *MediaItem) (*AudioBuffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken[item.ID] {
		return nil, fmt.Errorf("decode audio %s: broken", item.ID)
	}
	f.audioGet++
	if b, ok := f.audio[item.ID]; ok {
		return b, nil
	}
	return constAudioBuffer(1.0, 0.5), nil
}

func (f *fakeFactory) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, d := range f.opened {
		d.mu.Lock()
		if !d.released {
			n++
		}
		d.mu.Unlock()
	}
	return n
}

// constAudioBuffer builds seconds of stereo audio where every sample has the
// given value.
func constAudioBuffer(seconds, value float64) *AudioBuffer {
	n := int(seconds * AUDIO_SAMPLE_RATE)
	buf := &AudioBuffer{
		SampleRate: AUDIO_SAMPLE_RATE,
		Channels:   AUDIO_CHANNELS,
		Data:       make([]float32, n*AUDIO_CHANNELS),
	}
	for i := range buf.Data {
		buf.Data[i] = float32(value)
	}
	return buf
}

// recordingRaster records overlay paint calls in order.
type recordingRaster struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingRaster) RenderTextClip(dst *image.RGBA, tc *TextClip, localTime float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "text:"+tc.ID)
	return nil
}

func (r *recordingRaster) RenderShapeClip(dst *image.RGBA, sc *ShapeClip, localTime float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "shape:"+sc.ID)
	return nil
}

func (r *recordingRaster) RenderSubtitle(dst *image.RGBA, s *Subtitle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "sub:"+s.ID)
	return nil
}

// recordingEffects records which audio effects ran.
type recordingEffects struct {
	mu    sync.Mutex
	audio []string
}

func (e *recordingEffects) ApplyEffectsToFrame(_ string, frame *image.RGBA) *image.RGBA {
	return frame
}

func (e *recordingEffects) ProcessAudio(effect string, samples []float32, sampleRate int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.audio = append(e.audio, effect)
}

func (e *recordingEffects) audioCalls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.audio...)
}
