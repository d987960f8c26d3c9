// project_store_test.go - In-memory store tests

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

package main

import "testing"

func TestSetTimelineDerivesDuration(t *testing.T) {
	store := NewMemoryStore()
	store.SetTimeline(&ProjectTimeline{
		Tracks: []*Track{
			{ID: "v1", Kind: TrackVideo, Clips: []*Clip{
				{ID: "a", StartTime: 0, Duration: 4},
				{ID: "b", StartTime: 4, Duration: 3},
			}},
			{ID: "t1", Kind: TrackText, TextClips: []*TextClip{
				{ID: "title", StartTime: 6, Duration: 5},
			}},
		},
		Subtitles: []*Subtitle{{ID: "s1", StartTime: 0, EndTime: 9}},
	})

	if got := store.ProjectTimeline().Duration; got != 11 {
		t.Errorf("derived duration = %v, want 11 (latest overlay end)", got)
	}
}

func TestSetTimelineKeepsExplicitDuration(t *testing.T) {
	store := NewMemoryStore()
	store.SetTimeline(&ProjectTimeline{
		Duration: 30,
		Tracks: []*Track{
			{ID: "v1", Kind: TrackVideo, Clips: []*Clip{{ID: "a", Duration: 4}}},
		},
	})
	if got := store.ProjectTimeline().Duration; got != 30 {
		t.Errorf("duration = %v, want explicit 30", got)
	}
}

func TestAddMediaGeneratesID(t *testing.T) {
	store := NewMemoryStore()
	id := store.AddMedia(&MediaItem{Path: "/m/a.mp4", Type: MediaVideo})
	if id == "" {
		t.Fatal("no id generated")
	}
	if _, ok := store.MediaItem(id); !ok {
		t.Error("generated id not registered")
	}

	if got := store.AddMedia(&MediaItem{ID: "fixed", Path: "/m/b.mp4"}); got != "fixed" {
		t.Errorf("explicit id replaced: %q", got)
	}
}

func TestUpdateClipTransformPatchesInPlace(t *testing.T) {
	store := NewMemoryStore()
	store.SetTimeline(&ProjectTimeline{Tracks: []*Track{
		{ID: "v1", Kind: TrackVideo, Clips: []*Clip{
			{ID: "a", Duration: 4, Transform: DefaultTransform(32, 18)},
		}},
	}})

	x, rot := 100.0, 45.0
	store.UpdateClipTransform("a", TransformPatch{X: &x, Rotation: &rot})

	got := store.ProjectTimeline().Tracks[0].Clips[0].Transform
	if got.X != 100 || got.Rotation != 45 {
		t.Errorf("patched transform %+v", got)
	}
	if got.Y != 18 || got.ScaleX != 1 || got.Opacity != 1 {
		t.Errorf("untouched fields changed: %+v", got)
	}

	// Unknown target is a no-op, not a panic.
	store.UpdateClipTransform("missing", TransformPatch{X: &x})
}

func TestTimelineSnapshotShieldsRenderPass(t *testing.T) {
	store := NewMemoryStore()
	store.SetTimeline(&ProjectTimeline{
		Duration: 10,
		Tracks:   []*Track{{ID: "v1", Kind: TrackVideo}},
	})

	snap := store.ProjectTimeline()
	store.SetTimeline(&ProjectTimeline{Duration: 20})

	if len(snap.Tracks) != 1 || snap.Duration != 10 {
		t.Error("snapshot mutated by a later edit")
	}
}
