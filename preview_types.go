// preview_types.go - Timeline data model for the Prism preview engine

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

package main

import (
	"fmt"
	"sort"
)

// PreviewError provides detailed error context for preview pipeline operations
type PreviewError struct {
	Operation string // What operation was being attempted
	Details   string // Additional error context
	Err       error  // Underlying error if any
}

func (e *PreviewError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("preview %s failed: %s: %v", e.Operation, e.Details, e.Err)
	}
	return fmt.Sprintf("preview %s failed: %s", e.Operation, e.Details)
}

func (e *PreviewError) Unwrap() error {
	return e.Err
}

// TrackKind is the closed discriminator for timeline track and clip types.
type TrackKind int

const (
	TrackVideo TrackKind = iota
	TrackImage
	TrackAudio
	TrackText
	TrackShape
)

func (k TrackKind) String() string {
	switch k {
	case TrackVideo:
		return "video"
	case TrackImage:
		return "image"
	case TrackAudio:
		return "audio"
	case TrackText:
		return "text"
	case TrackShape:
		return "shape"
	}
	return "unknown"
}

// IsVisual reports whether tracks of this kind occupy the video layer stack.
func (k TrackKind) IsVisual() bool {
	return k == TrackVideo || k == TrackImage
}

// IsOverlay reports whether tracks of this kind hold text/graphic entities
// painted by the overlay compositor rather than the video layer stack.
func (k TrackKind) IsOverlay() bool {
	return k == TrackText || k == TrackShape
}

// CropRect is a normalized crop window into a source frame (0..1 each axis).
type CropRect struct {
	X float64
	Y float64
	W float64
	H float64
}

// Transform is the static placement of a clip in output space. Position is
// the location of the anchor point in output pixels, the anchor is expressed
// as a fraction of the layer bounds, rotation is in degrees.
type Transform struct {
	X            float64
	Y            float64
	ScaleX       float64
	ScaleY       float64
	Rotation     float64
	AnchorX      float64
	AnchorY      float64
	Opacity      float64
	BorderRadius float64
	Crop         *CropRect
	RotateX      float64 // 3D tilt, degrees; previewed as foreshortening
	RotateY      float64
	Perspective  float64
}

// DefaultTransform returns an identity transform centered at (x, y).
func DefaultTransform(x, y float64) Transform {
	return Transform{
		X:       x,
		Y:       y,
		ScaleX:  1,
		ScaleY:  1,
		AnchorX: 0.5,
		AnchorY: 0.5,
		Opacity: 1,
	}
}

// TransformPatch is a partial transform update. Nil fields are left untouched
// by the store; used for live-interaction commits.
type TransformPatch struct {
	X            *float64
	Y            *float64
	ScaleX       *float64
	ScaleY       *float64
	Rotation     *float64
	Opacity      *float64
	BorderRadius *float64
	Crop         *CropRect
}

// Apply overlays the patch onto a transform and returns the result.
func (p TransformPatch) Apply(t Transform) Transform {
	if p.X != nil {
		t.X = *p.X
	}
	if p.Y != nil {
		t.Y = *p.Y
	}
	if p.ScaleX != nil {
		t.ScaleX = *p.ScaleX
	}
	if p.ScaleY != nil {
		t.ScaleY = *p.ScaleY
	}
	if p.Rotation != nil {
		t.Rotation = *p.Rotation
	}
	if p.Opacity != nil {
		t.Opacity = *p.Opacity
	}
	if p.BorderRadius != nil {
		t.BorderRadius = *p.BorderRadius
	}
	if p.Crop != nil {
		t.Crop = p.Crop
	}
	return t
}

// Animatable keyframe property names.
const (
	PropPositionX    = "positionX"
	PropPositionY    = "positionY"
	PropScale        = "scale" // uniform, drives both axes
	PropScaleX       = "scaleX"
	PropScaleY       = "scaleY"
	PropRotation     = "rotation"
	PropOpacity      = "opacity"
	PropBorderRadius = "borderRadius"
)

// Keyframe easing tags.
const (
	EaseLinear = "linear"
	EaseIn     = "easeIn"
	EaseOut    = "easeOut"
	EaseInOut  = "easeInOut"
)

// Keyframe is a time-stamped property snapshot. A property's keyframe list is
// kept time-sorted; evaluation between two keyframes interpolates, outside
// the range it clamps to the nearest keyframe.
type Keyframe struct {
	Property string
	Time     float64 // seconds, local to the clip
	Value    float64
	Easing   string
}

// Emphasis animation types.
const (
	EmphasisNone    = "none"
	EmphasisPulse   = "pulse"
	EmphasisShake   = "shake"
	EmphasisBounce  = "bounce"
	EmphasisSpin    = "spin"
	EmphasisBreathe = "breathe"
)

// EmphasisAnimation describes a looping attention animation composed on top
// of the keyframe-resolved transform. StartTime/Duration default to the full
// clip when zero.
type EmphasisAnimation struct {
	Type      string
	Speed     float64 // oscillation cycles per second at speed 1
	Intensity float64
	Loop      bool
	StartTime float64 // seconds, local to the clip
	Duration  float64 // seconds; 0 = rest of clip
	FocusX    float64 // optional focus point, output px
	FocusY    float64
}

// TransitionDescriptor describes the blend applied across the overlap of two
// adjacent clips on the same lane. The overlap window itself defines the
// transition's time range.
type TransitionDescriptor struct {
	Type     string // crossfade, wipeLeft, wipeRight, wipeUp, wipeDown, dipToBlack
	Softness float64
}

// Transition types.
const (
	TransitionCrossfade = "crossfade"
	TransitionWipeLeft  = "wipeLeft"
	TransitionWipeRight = "wipeRight"
	TransitionWipeUp    = "wipeUp"
	TransitionWipeDown  = "wipeDown"
	TransitionDipBlack  = "dipToBlack"
)

// Clip is a timeline-placed reference to a video or image media source.
// The preview pipeline reads clips every frame and never mutates them; the
// only write path back into the store is the live-interaction committer.
type Clip struct {
	ID        string
	MediaID   string
	Kind      TrackKind // TrackVideo or TrackImage
	StartTime float64   // timeline seconds
	Duration  float64
	InPoint   float64 // source trim, media seconds
	OutPoint  float64 // 0 = natural end

	Transform Transform
	Keyframes []Keyframe
	Emphasis  *EmphasisAnimation

	Effects      []string
	AudioEffects []string
	Volume       float64 // 0..1, 0 means unset (treated as 1)
	Pan          float64 // -1..1

	Transition *TransitionDescriptor // blend into the next overlapping clip
}

// EndTime returns the timeline time at which the clip stops being active.
func (c *Clip) EndTime() float64 {
	return c.StartTime + c.Duration
}

// ActiveAt reports whether the clip covers timeline time t.
func (c *Clip) ActiveAt(t float64) bool {
	return t >= c.StartTime && t < c.EndTime()
}

// LocalTime converts a timeline time to clip-local seconds.
func (c *Clip) LocalTime(t float64) float64 {
	return t - c.StartTime
}

// TextClip is an overlay text entity, co-scheduled by time like a Clip but
// not part of the visual clip union.
type TextClip struct {
	ID        string
	StartTime float64
	Duration  float64
	Transform Transform
	Text      string
	FontSize  float64
	FontPath  string // empty = built-in face
	Color     string // hex, e.g. "#ffffff"
	Bold      bool
}

func (tc *TextClip) ActiveAt(t float64) bool {
	return t >= tc.StartTime && t < tc.StartTime+tc.Duration
}

// Shape kinds understood by the default shape rasterizer.
const (
	ShapeRect    = "rect"
	ShapeEllipse = "ellipse"
	ShapeLine    = "line"
)

// ShapeClip is an overlay vector graphic entity.
type ShapeClip struct {
	ID          string
	StartTime   float64
	Duration    float64
	Transform   Transform
	Shape       string
	Width       float64 // design-space size before transform scale
	Height      float64
	Fill        string // hex color, empty = no fill
	Stroke      string // hex color, empty = no stroke
	StrokeWidth float64
}

func (sc *ShapeClip) ActiveAt(t float64) bool {
	return t >= sc.StartTime && t < sc.StartTime+sc.Duration
}

// Subtitle is a time-ranged caption with style.
type Subtitle struct {
	ID        string
	StartTime float64
	EndTime   float64
	Text      string
	FontSize  float64
	Color     string
	Anchor    string  // "bottom" (default), "top", "center"
	MarginY   float64 // px from the anchored edge
}

func (s *Subtitle) ActiveAt(t float64) bool {
	return t >= s.StartTime && t < s.EndTime
}

// Track is an ordered, homogeneous container of clips. Track index order is
// paint order: for video/image tracks, lower index paints later (on top).
type Track struct {
	ID     string
	Kind   TrackKind
	Hidden bool
	Muted  bool
	Solo   bool
	Locked bool

	Clips      []*Clip      // video/image/audio tracks
	TextClips  []*TextClip  // text tracks
	ShapeClips []*ShapeClip // shape tracks
}

// ActiveClipAt returns the clip covering time t, or nil. When two clips
// overlap (a transition region), the earlier-starting clip is returned; the
// transition evaluator handles the pair.
func (tr *Track) ActiveClipAt(t float64) *Clip {
	var found *Clip
	for _, c := range tr.Clips {
		if !c.ActiveAt(t) {
			continue
		}
		if found == nil || c.StartTime < found.StartTime {
			found = c
		}
	}
	return found
}

// SortedClips returns the track's clips ordered by start time. The store is
// expected to keep them sorted already; this copy shields the render pass
// from concurrent edits.
func (tr *Track) SortedClips() []*Clip {
	out := make([]*Clip, len(tr.Clips))
	copy(out, tr.Clips)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

// ProjectTimeline is the borrowed view of the project store's timeline. The
// preview engine holds it only for the duration of one render or scheduling
// pass.
type ProjectTimeline struct {
	Tracks    []*Track
	Subtitles []*Subtitle
	Duration  float64
	Markers   []float64
}

// NextContentStart returns the earliest clip/overlay start strictly after t,
// or -1 when no content exists later on the timeline.
func (tl *ProjectTimeline) NextContentStart(t float64) float64 {
	next := -1.0
	consider := func(start float64) {
		if start > t && (next < 0 || start < next) {
			next = start
		}
	}
	for _, tr := range tl.Tracks {
		if tr.Hidden && tr.Kind != TrackAudio {
			continue
		}
		for _, c := range tr.Clips {
			consider(c.StartTime)
		}
		for _, tc := range tr.TextClips {
			consider(tc.StartTime)
		}
		for _, sc := range tr.ShapeClips {
			consider(sc.StartTime)
		}
	}
	for _, s := range tl.Subtitles {
		consider(s.StartTime)
	}
	return next
}

// HasContentAt reports whether any active clip of any kind (video, image,
// audio) or overlay entity covers time t. Hidden affects visual lanes only;
// the audio scheduler plays hidden lanes, so they count here too.
func (tl *ProjectTimeline) HasContentAt(t float64) bool {
	for _, tr := range tl.Tracks {
		if tr.Kind == TrackAudio {
			if tr.ActiveClipAt(t) != nil {
				return true
			}
			continue
		}
		if tr.Hidden {
			continue
		}
		switch {
		case tr.Kind.IsVisual():
			if tr.ActiveClipAt(t) != nil {
				return true
			}
		case tr.Kind == TrackText:
			for _, tc := range tr.TextClips {
				if tc.ActiveAt(t) {
					return true
				}
			}
		case tr.Kind == TrackShape:
			for _, sc := range tr.ShapeClips {
				if sc.ActiveAt(t) {
					return true
				}
			}
		}
	}
	for _, s := range tl.Subtitles {
		if s.ActiveAt(t) {
			return true
		}
	}
	return false
}

// Media item types.
const (
	MediaVideo = "video"
	MediaImage = "image"
	MediaAudio = "audio"
)

// MediaItem describes an imported media source. Path points at the decoded
// local file; metadata is best effort.
type MediaItem struct {
	ID       string
	Path     string
	Type     string
	Width    int
	Height   int
	Duration float64 // media seconds, 0 for images
}

// AudioClipSchedule is an ephemeral record derived from Clip + Track + effect
// lookups whenever audio scheduling runs. It is never persisted.
type AudioClipSchedule struct {
	ClipID      string
	TrackID     string
	MediaID     string
	Buffer      *AudioBuffer
	StartTime   float64 // absolute timeline seconds
	EndTime     float64
	MediaOffset float64 // media seconds at StartTime, post speed mapping
	Speed       float64
	Reverse     bool
	Volume      float64
	Pan         float64
	Effects     []string
}
