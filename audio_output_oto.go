//go:build !headless

// audio_output_oto.go - Audio device output via oto

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

package main

import (
	"encoding/binary"
	"io"
	"math"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

// OtoOutput streams the mixer to the default audio device. The device pulls;
// mixerReader converts the float32 mix to the wire format on demand. The
// mixer pointer is atomic so the playback engine can swap graphs without
// stalling the audio callback.
type OtoOutput struct {
	ctx    *oto.Context
	player *oto.Player
	reader *mixerReader
}

type mixerReader struct {
	mixer   atomic.Pointer[AudioMixer]
	samples []float32
}

func (r *mixerReader) Read(p []byte) (int, error) {
	// 4 bytes per float32 sample, whole stereo frames only.
	n := len(p) / 4
	n -= n % AUDIO_CHANNELS
	if n == 0 {
		return 0, nil
	}
	if cap(r.samples) < n {
		r.samples = make([]float32, n)
	}
	buf := r.samples[:n]

	mixer := r.mixer.Load()
	if mixer != nil {
		mixer.ReadSamples(buf)
	} else {
		for i := range buf {
			buf[i] = 0
		}
	}

	for i, s := range buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	return n * 4, nil
}

var _ io.Reader = (*mixerReader)(nil)

func NewOtoOutput() (*OtoOutput, error) {
	reader := &mixerReader{}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   AUDIO_SAMPLE_RATE,
		ChannelCount: AUDIO_CHANNELS,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, &PreviewError{
			Operation: "audio device init",
			Err:       err,
		}
	}
	<-ready

	player := ctx.NewPlayer(reader)
	player.SetBufferSize(AUDIO_SAMPLE_RATE * AUDIO_CHANNELS * 4 / 25) // ~40ms
	out := &OtoOutput{ctx: ctx, player: player, reader: reader}
	player.Play()
	return out, nil
}

// SetMixer attaches (or detaches, with nil) the mixing graph.
func (o *OtoOutput) SetMixer(m *AudioMixer) {
	o.reader.mixer.Store(m)
}

func (o *OtoOutput) Close() error {
	o.reader.mixer.Store(nil)
	if o.player != nil {
		o.player.Pause()
		if err := o.player.Close(); err != nil {
			return err
		}
		o.player = nil
	}
	// oto contexts have no Close; give the device a beat to drain.
	time.Sleep(20 * time.Millisecond)
	return nil
}
