// audio_scheduler.go - Timeline to mixer audio scheduling

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

package main

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AudioScheduler keeps the mixer's scheduled sources in sync with the
// timeline. It reschedules on a fixed period while playing so timeline edits
// made mid-playback are heard without a stop/start cycle; sample-accurate
// start/stop within a period is the mixer's job.
type AudioScheduler struct {
	mixer *AudioMixer
	cache *AudioBufferCache
	store ProjectStore
	speed SpeedEngine
	log   zerolog.Logger

	mu      sync.Mutex
	done    chan struct{}
	wg      sync.WaitGroup
	running bool
}

func NewAudioScheduler(mixer *AudioMixer, cache *AudioBufferCache, svc Services) *AudioScheduler {
	return &AudioScheduler{
		mixer: mixer,
		cache: cache,
		store: svc.Store,
		speed: svc.Speed,
		log:   svc.Log,
	}
}

// StartScheduler begins periodic rescheduling. A first pass runs immediately
// so playback does not wait one period for sound.
func (as *AudioScheduler) StartScheduler() {
	as.mu.Lock()
	if as.running {
		as.mu.Unlock()
		return
	}
	as.running = true
	as.done = make(chan struct{})
	done := as.done
	as.mu.Unlock()

	as.Reschedule()

	as.wg.Add(1)
	go func() {
		defer as.wg.Done()
		ticker := time.NewTicker(AUDIO_RESCHEDULE_PERIOD)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				as.Reschedule()
			}
		}
	}()
}

// StopScheduler stops periodic rescheduling and silences all sources.
func (as *AudioScheduler) StopScheduler() {
	as.mu.Lock()
	if !as.running {
		as.mu.Unlock()
		return
	}
	as.running = false
	close(as.done)
	as.mu.Unlock()

	as.wg.Wait()
	as.mixer.StopAllClips()
}

// Reschedule rebuilds bus configuration and scheduled sources from the
// current timeline.
func (as *AudioScheduler) Reschedule() {
	tl := as.store.ProjectTimeline()
	if tl == nil {
		as.mixer.StopAllClips()
		return
	}
	as.mixer.ConfigureBuses(BuildBusConfigs(tl))
	as.mixer.ScheduleClips(as.BuildSchedules(tl))
}

// BuildBusConfigs derives one mixer bus per audible track.
func BuildBusConfigs(tl *ProjectTimeline) []BusConfig {
	var configs []BusConfig
	for _, tr := range tl.Tracks {
		if tr.Kind != TrackAudio && tr.Kind != TrackVideo {
			continue
		}
		configs = append(configs, BusConfig{
			TrackID: tr.ID,
			Volume:  1,
			Muted:   tr.Muted,
			Solo:    tr.Solo,
		})
	}
	return configs
}

// BuildSchedules converts every audible clip on the timeline into a mixer
// schedule. Video clips contribute their embedded audio; a clip whose media
// fails to decode is skipped, never fatal.
func (as *AudioScheduler) BuildSchedules(tl *ProjectTimeline) []AudioClipSchedule {
	var schedules []AudioClipSchedule
	for _, tr := range tl.Tracks {
		if tr.Kind != TrackAudio && tr.Kind != TrackVideo {
			continue
		}
		for _, c := range tr.Clips {
			item, ok := as.store.MediaItem(c.MediaID)
			if !ok {
				continue
			}
			if item.Type == MediaImage {
				continue
			}
			buf := as.cache.Get(item)
			if buf == nil {
				continue
			}
			vol := c.Volume
			if vol == 0 {
				vol = 1
			}
			schedules = append(schedules, AudioClipSchedule{
				ClipID:      c.ID,
				TrackID:     tr.ID,
				MediaID:     c.MediaID,
				Buffer:      buf,
				StartTime:   c.StartTime,
				EndTime:     c.EndTime(),
				MediaOffset: c.InPoint + as.speed.SourceTimeAtPlaybackTime(c.ID, 0),
				Speed:       as.speed.ClipSpeed(c.ID),
				Reverse:     as.speed.IsReverse(c.ID),
				Volume:      vol,
				Pan:         c.Pan,
				Effects:     c.AudioEffects,
			})
		}
	}
	linkEffectChains(tl, schedules)
	return schedules
}

// linkEffectChains gives a detached audio schedule the audio effect chain of
// its video clip. Editors drop a clip's audio onto its own lane in lockstep
// with the video, so the pair shares media and starts within a few samples of
// each other. Only schedules with no chain of their own are linked; an
// explicit chain on the audio clip wins.
func linkEffectChains(tl *ProjectTimeline, schedules []AudioClipSchedule) {
	type videoClip struct {
		clipID  string
		mediaID string
		start   float64
		effects []string
	}
	var videos []videoClip
	for _, tr := range tl.Tracks {
		if tr.Kind != TrackVideo {
			continue
		}
		for _, c := range tr.Clips {
			if len(c.AudioEffects) > 0 {
				videos = append(videos, videoClip{
					clipID:  c.ID,
					mediaID: c.MediaID,
					start:   c.StartTime,
					effects: c.AudioEffects,
				})
			}
		}
	}
	if len(videos) == 0 {
		return
	}
	for i := range schedules {
		s := &schedules[i]
		if len(s.Effects) > 0 {
			continue
		}
		for _, v := range videos {
			if v.clipID == s.ClipID || v.mediaID != s.MediaID {
				continue
			}
			if math.Abs(s.StartTime-v.start) > AUDIO_LINKED_CLIP_WINDOW {
				continue
			}
			s.Effects = append([]string(nil), v.effects...)
			break
		}
	}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
