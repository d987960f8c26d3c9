//go:build headless

// audio_output_headless.go - Silent audio output for headless builds

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

package main

import (
	"sync"
	"time"
)

// OtoOutput in headless builds drains the mixer on a timer so the timeline
// advances identically with or without an audio device.
type OtoOutput struct {
	mu    sync.Mutex
	mixer *AudioMixer
	done  chan struct{}
	buf   []float32
}

func NewOtoOutput() (*OtoOutput, error) {
	o := &OtoOutput{
		done: make(chan struct{}),
		buf:  make([]float32, AUDIO_SAMPLE_RATE*AUDIO_CHANNELS/50),
	}
	go o.drainLoop()
	return o, nil
}

func (o *OtoOutput) drainLoop() {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-o.done:
			return
		case <-ticker.C:
			o.mu.Lock()
			m := o.mixer
			o.mu.Unlock()
			if m != nil {
				m.ReadSamples(o.buf)
			}
		}
	}
}

func (o *OtoOutput) SetMixer(m *AudioMixer) {
	o.mu.Lock()
	o.mixer = m
	o.mu.Unlock()
}

func (o *OtoOutput) Close() error {
	select {
	case <-o.done:
	default:
		close(o.done)
	}
	return nil
}
