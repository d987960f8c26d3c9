// demo_project.go - Demo timeline assembly for the standalone binary

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// demoOptions collects the command-line inputs of the standalone preview.
type demoOptions struct {
	videos   []string
	images   []string
	audios   []string
	title    string
	subtitle string
	width    int
	height   int
	fps      int
	loop     bool
	software bool
	checker  bool
	logLevel string
}

// buildDemoProject imports the given files into a fresh store and lays them
// out on a simple timeline: videos back to back on one lane, images on an
// underlay lane spanning the whole program, audio files on their own lane,
// plus an optional title and subtitle.
func buildDemoProject(opts demoOptions) (*MemoryStore, error) {
	if len(opts.videos) == 0 && len(opts.images) == 0 && len(opts.audios) == 0 {
		return nil, fmt.Errorf("no media given")
	}
	store := NewMemoryStore()
	cx := float64(opts.width) / 2
	cy := float64(opts.height) / 2

	videoTrack := &Track{ID: "video-1", Kind: TrackVideo}
	cursor := 0.0
	for _, path := range opts.videos {
		dur, err := ProbeMediaDuration(path)
		if err != nil {
			return nil, err
		}
		if dur <= 0 {
			return nil, fmt.Errorf("%s: no duration in container", path)
		}
		id := store.AddMedia(&MediaItem{
			Path:     path,
			Type:     MediaVideo,
			Duration: dur,
		})
		videoTrack.Clips = append(videoTrack.Clips, &Clip{
			ID:        uuid.NewString(),
			MediaID:   id,
			Kind:      TrackVideo,
			StartTime: cursor,
			Duration:  dur,
			Transform: DefaultTransform(cx, cy),
		})
		cursor += dur
	}
	program := cursor
	if program == 0 {
		program = 10
	}

	imageTrack := &Track{ID: "image-1", Kind: TrackImage}
	for _, path := range opts.images {
		id := store.AddMedia(&MediaItem{Path: path, Type: MediaImage})
		imageTrack.Clips = append(imageTrack.Clips, &Clip{
			ID:        uuid.NewString(),
			MediaID:   id,
			Kind:      TrackImage,
			StartTime: 0,
			Duration:  program,
			Transform: DefaultTransform(cx, cy),
		})
	}

	audioTrack := &Track{ID: "audio-1", Kind: TrackAudio}
	acursor := 0.0
	for _, path := range opts.audios {
		dur, err := ProbeMediaDuration(path)
		if err != nil {
			return nil, err
		}
		if dur <= 0 {
			return nil, fmt.Errorf("%s: no duration in container", path)
		}
		id := store.AddMedia(&MediaItem{Path: path, Type: MediaAudio, Duration: dur})
		audioTrack.Clips = append(audioTrack.Clips, &Clip{
			ID:        uuid.NewString(),
			MediaID:   id,
			Kind:      TrackAudio,
			StartTime: acursor,
			Duration:  dur,
			Volume:    1,
		})
		acursor += dur
	}

	var tracks []*Track
	if opts.title != "" {
		textTrack := &Track{ID: "text-1", Kind: TrackText}
		textTrack.TextClips = append(textTrack.TextClips, &TextClip{
			ID:        uuid.NewString(),
			StartTime: 0,
			Duration:  program,
			Transform: DefaultTransform(cx, float64(opts.height)/6),
			Text:      opts.title,
			FontSize:  48,
			Color:     "#ffffff",
		})
		tracks = append(tracks, textTrack)
	}
	if len(videoTrack.Clips) > 0 {
		tracks = append(tracks, videoTrack)
	}
	if len(imageTrack.Clips) > 0 {
		tracks = append(tracks, imageTrack)
	}
	if len(audioTrack.Clips) > 0 {
		tracks = append(tracks, audioTrack)
	}

	tl := &ProjectTimeline{Tracks: tracks}
	if opts.subtitle != "" {
		tl.Subtitles = append(tl.Subtitles, &Subtitle{
			ID:        uuid.NewString(),
			StartTime: 0,
			EndTime:   program,
			Text:      opts.subtitle,
			FontSize:  24,
			Color:     "#ffffff",
		})
	}
	store.SetTimeline(tl)
	return store, nil
}

// splitPathList splits a comma-separated flag value into cleaned paths.
func splitPathList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, filepath.Clean(p))
		}
	}
	return out
}
