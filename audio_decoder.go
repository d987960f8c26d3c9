// audio_decoder.go - Audio buffer decoding and caching

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

package main

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/erparts/reisen"
	"github.com/rs/zerolog"
)

// AudioBuffer holds fully decoded interleaved stereo samples for one media
// source. Buffers are decoded once per media id and shared between
// scheduling passes; they survive playback stop so restarts are cheap.
type AudioBuffer struct {
	SampleRate int
	Channels   int
	Data       []float32 // interleaved
}

// DurationSeconds returns the buffer length in seconds.
func (b *AudioBuffer) DurationSeconds() float64 {
	if b.SampleRate == 0 || b.Channels == 0 {
		return 0
	}
	return float64(len(b.Data)) / float64(b.Channels) / float64(b.SampleRate)
}

// SampleAt returns the sample for one channel at media time t, zero outside
// the buffer.
func (b *AudioBuffer) SampleAt(t float64, ch int) float32 {
	if t < 0 || b.SampleRate == 0 {
		return 0
	}
	idx := int(t*float64(b.SampleRate))*b.Channels + ch%b.Channels
	if idx < 0 || idx >= len(b.Data) {
		return 0
	}
	return b.Data[idx]
}

// decodeAudioBuffer decodes the first audio stream of a media file into an
// AudioBuffer. reisen hands back packed little-endian float64 stereo.
func decodeAudioBuffer(item *MediaItem) (*AudioBuffer, error) {
	media, err := reisen.NewMedia(item.Path)
	if err != nil {
		return nil, &PreviewError{Operation: "audio open", Details: item.Path, Err: err}
	}
	defer media.Close()

	streams := media.AudioStreams()
	if len(streams) == 0 {
		return nil, &PreviewError{Operation: "audio open", Details: item.Path + ": no audio stream"}
	}
	stream := streams[0]

	if err := media.OpenDecode(); err != nil {
		return nil, &PreviewError{Operation: "audio decode open", Details: item.Path, Err: err}
	}
	defer media.CloseDecode()
	if err := stream.Open(); err != nil {
		return nil, &PreviewError{Operation: "audio stream open", Details: item.Path, Err: err}
	}
	defer stream.Close()

	sr := stream.SampleRate()
	if sr <= 0 {
		sr = AUDIO_SAMPLE_RATE
	}
	buf := &AudioBuffer{SampleRate: sr, Channels: AUDIO_CHANNELS}
	for {
		packet, ok, err := media.ReadPacket()
		if err != nil {
			return nil, &PreviewError{Operation: "audio packet read", Details: item.Path, Err: err}
		}
		if !ok {
			break
		}
		if packet.Type() != reisen.StreamAudio || packet.StreamIndex() != stream.Index() {
			continue
		}
		frame, got, err := stream.ReadAudioFrame()
		if err != nil {
			return nil, &PreviewError{Operation: "audio frame read", Details: item.Path, Err: err}
		}
		if !got || frame == nil {
			continue
		}
		data := frame.Data()
		for i := 0; i+8 <= len(data); i += 8 {
			bits := binary.LittleEndian.Uint64(data[i : i+8])
			buf.Data = append(buf.Data, float32(math.Float64frombits(bits)))
		}
	}
	return buf, nil
}

// AudioBufferCache decodes each media id at most once. A failed decode is
// remembered so one broken clip does not re-trigger ffmpeg every scheduling
// pass, and never aborts scheduling of the others.
type AudioBufferCache struct {
	mu      sync.Mutex
	factory DecoderFactory
	buffers map[string]*AudioBuffer
	failed  map[string]bool
	log     zerolog.Logger
}

func NewAudioBufferCache(factory DecoderFactory, log zerolog.Logger) *AudioBufferCache {
	return &AudioBufferCache{
		factory: factory,
		buffers: make(map[string]*AudioBuffer),
		failed:  make(map[string]bool),
		log:     log,
	}
}

// Get returns the decoded buffer for a media item, or nil when decode failed.
func (c *AudioBufferCache) Get(item *MediaItem) *AudioBuffer {
	c.mu.Lock()
	if b, ok := c.buffers[item.ID]; ok {
		c.mu.Unlock()
		return b
	}
	if c.failed[item.ID] {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	b, err := c.factory.DecodeAudio(item)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.failed[item.ID] = true
		c.log.Warn().Err(err).Str("media", item.ID).Msg("audio decode failed")
		return nil
	}
	c.buffers[item.ID] = b
	return b
}

// Invalidate drops the cached buffer (and failure marker) for a media id.
func (c *AudioBufferCache) Invalidate(mediaID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.buffers, mediaID)
	delete(c.failed, mediaID)
}

// Reset clears all decoded audio state.
func (c *AudioBufferCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffers = make(map[string]*AudioBuffer)
	c.failed = make(map[string]bool)
}
