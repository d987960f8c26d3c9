// audio_mixer.go - Real-time audio mixing graph

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

/*
One sub-bus per audio track (volume, pan, mute, solo, effect chain). The
device output pulls interleaved stereo samples; each pulled block is
positioned against the master clock, so scheduled sources start and stop on
the sample that matches the timeline rather than on scheduler granularity.
Speed and reverse are baked into each schedule's media-time mapping.
*/

package main

import (
	"math"
	"sync"
)

type trackBus struct {
	trackID string
	volume  float64
	pan     float64
	muted   bool
	solo    bool
	effects []string
	sources []AudioClipSchedule
	scratch []float32
	srcBuf  []float32
}

// BusConfig carries a track's mixing parameters into the graph.
type BusConfig struct {
	TrackID string
	Volume  float64
	Pan     float64
	Muted   bool
	Solo    bool
	Effects []string
}

// AudioMixer is the pull-model mixing graph read by the audio device.
type AudioMixer struct {
	mu         sync.Mutex
	clock      *MasterClock
	effects    EffectsEngine
	buses      map[string]*trackBus
	sampleRate int
	masterMute bool
}

func NewAudioMixer(clock *MasterClock, effects EffectsEngine) *AudioMixer {
	return &AudioMixer{
		clock:      clock,
		effects:    effects,
		buses:      make(map[string]*trackBus),
		sampleRate: AUDIO_SAMPLE_RATE,
	}
}

func (m *AudioMixer) SampleRate() int { return m.sampleRate }

func (m *AudioMixer) SetMasterMute(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.masterMute = muted
}

func (m *AudioMixer) MasterMuted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.masterMute
}

// ConfigureBuses replaces the bus set with the given track configurations,
// keeping scheduled sources of surviving buses untouched.
func (m *AudioMixer) ConfigureBuses(configs []BusConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool, len(configs))
	for _, cfg := range configs {
		seen[cfg.TrackID] = true
		bus, ok := m.buses[cfg.TrackID]
		if !ok {
			bus = &trackBus{trackID: cfg.TrackID}
			m.buses[cfg.TrackID] = bus
		}
		bus.volume = cfg.Volume
		bus.pan = cfg.Pan
		bus.muted = cfg.Muted
		bus.solo = cfg.Solo
		bus.effects = cfg.Effects
	}
	for id := range m.buses {
		if !seen[id] {
			delete(m.buses, id)
		}
	}
}

// ScheduleClips replaces the scheduled source set. Because playback position
// is derived from the clock at read time, replacing a schedule that is
// already playing continues from the same sample: no discontinuity.
func (m *AudioMixer) ScheduleClips(schedules []AudioClipSchedule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, bus := range m.buses {
		bus.sources = bus.sources[:0]
	}
	for _, s := range schedules {
		bus, ok := m.buses[s.TrackID]
		if !ok {
			bus = &trackBus{trackID: s.TrackID, volume: 1}
			m.buses[s.TrackID] = bus
		}
		bus.sources = append(bus.sources, s)
	}
}

// StopAllClips drops every scheduled source, leaving bus configuration in
// place.
func (m *AudioMixer) StopAllClips() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, bus := range m.buses {
		bus.sources = nil
	}
}

// ReadSamples fills dst (interleaved stereo) with the mix at the clock's
// current position. Silent while paused or muted.
func (m *AudioMixer) ReadSamples(dst []float32) {
	for i := range dst {
		dst[i] = 0
	}
	if !m.clock.IsPlaying() {
		return
	}
	t0 := m.clock.CurrentTime()
	rate := m.clock.Rate()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.masterMute || len(m.buses) == 0 {
		return
	}

	soloed := false
	for _, bus := range m.buses {
		if bus.solo {
			soloed = true
			break
		}
	}

	frames := len(dst) / AUDIO_CHANNELS
	dt := rate / float64(m.sampleRate)

	for _, bus := range m.buses {
		if bus.muted || (soloed && !bus.solo) || len(bus.sources) == 0 {
			continue
		}
		if cap(bus.scratch) < len(dst) {
			bus.scratch = make([]float32, len(dst))
		}
		scratch := bus.scratch[:len(dst)]
		for i := range scratch {
			scratch[i] = 0
		}

		if cap(bus.srcBuf) < len(dst) {
			bus.srcBuf = make([]float32, len(dst))
		}

		active := false
		for _, src := range bus.sources {
			if src.Buffer == nil {
				continue
			}
			srcBuf := bus.srcBuf[:len(dst)]
			for i := range srcBuf {
				srcBuf[i] = 0
			}
			hit := false
			for f := 0; f < frames; f++ {
				t := t0 + float64(f)*dt
				if t < src.StartTime || t >= src.EndTime {
					continue
				}
				local := t - src.StartTime
				var mediaT float64
				if src.Reverse {
					mediaT = src.MediaOffset - local*src.Speed
				} else {
					mediaT = src.MediaOffset + local*src.Speed
				}
				vol := float32(src.Volume)
				l, r := panGains(src.Pan)
				srcBuf[f*2] = src.Buffer.SampleAt(mediaT, 0) * vol * l
				srcBuf[f*2+1] = src.Buffer.SampleAt(mediaT, 1) * vol * r
				hit = true
			}
			if !hit {
				continue
			}
			for _, effect := range src.Effects {
				m.effects.ProcessAudio(effect, srcBuf, m.sampleRate)
			}
			for i := range scratch {
				scratch[i] += srcBuf[i]
			}
			active = true
		}
		if !active {
			continue
		}

		for _, effect := range bus.effects {
			m.effects.ProcessAudio(effect, scratch, m.sampleRate)
		}

		busL, busR := panGains(bus.pan)
		gain := float32(bus.volume)
		for f := 0; f < frames; f++ {
			dst[f*2] += scratch[f*2] * gain * busL
			dst[f*2+1] += scratch[f*2+1] * gain * busR
		}
	}

	// Soft clip to avoid wraparound artifacts on hot mixes.
	for i, v := range dst {
		if v > 1 {
			dst[i] = 1
		} else if v < -1 {
			dst[i] = -1
		}
	}
}

// panGains implements an equal-power pan law for pan in [-1, 1].
func panGains(pan float64) (l, r float32) {
	if pan < -1 {
		pan = -1
	}
	if pan > 1 {
		pan = 1
	}
	angle := (pan + 1) * math.Pi / 4
	return float32(math.Cos(angle)), float32(math.Sin(angle))
}
