// media_decoder.go - Seek-and-snapshot media decoding via reisen/ffmpeg

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

/*
media_decoder.go - General-purpose frame decoding

One ClipDecoder per open media source, usable for any clip at arbitrary time.
This is the decode strategy behind scrubbing and the multi-track compositing
path; the single-track fast path uses frame_stream.go instead.

Seek discipline: a request slightly ahead of the current decode position is
served by decoding forward (cheap during monotonic playback); a re-seek is
issued only when the target is behind the position or beyond the forward
epsilon. Seeks settle within a bounded wait and then proceed best effort.
*/

package main

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	"github.com/erparts/reisen"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ClipDecoder produces rasterized frames for one media source at arbitrary
// media times. Implementations are not safe for concurrent use; the source
// cache serializes access per entry.
type ClipDecoder interface {
	// FrameAt decodes the frame covering mediaTime and scales it to
	// outW x outH. Returns nil with an error on decode failure or timeout.
	FrameAt(mediaTime float64, outW, outH int) (*image.RGBA, error)
	// Position is the media time of the last decoded frame.
	Position() float64
	// Release closes the underlying decode handle. Idempotent.
	Release()
}

// StreamDecoder is the continuous-decode variant used only by the
// single-track hardware fast path: the source keeps decoding forward and the
// orchestrator samples its current frame each tick.
type StreamDecoder interface {
	Start(at float64) error
	// FrameFor returns the newest decoded frame at or before mediaTime,
	// correcting drift beyond STREAM_DRIFT_LIMIT with a forced seek.
	FrameFor(mediaTime float64) *image.RGBA
	Position() float64
	Stop()
}

// DecoderFactory opens decode handles for media items. Split out as an
// interface so the cache and orchestrator are testable without ffmpeg.
type DecoderFactory interface {
	OpenVideo(item *MediaItem) (ClipDecoder, error)
	OpenStream(item *MediaItem) (StreamDecoder, error)
	DecodeImage(item *MediaItem) (*image.RGBA, error)
	DecodeAudio(item *MediaItem) (*AudioBuffer, error)
}

// ReisenFactory is the production DecoderFactory backed by reisen (ffmpeg).
type ReisenFactory struct{}

func (ReisenFactory) OpenVideo(item *MediaItem) (ClipDecoder, error) {
	return openReisenDecoder(item)
}

func (ReisenFactory) OpenStream(item *MediaItem) (StreamDecoder, error) {
	return openFrameStream(item)
}

func (ReisenFactory) DecodeImage(item *MediaItem) (*image.RGBA, error) {
	f, err := os.Open(item.Path)
	if err != nil {
		return nil, &PreviewError{Operation: "image open", Details: item.Path, Err: err}
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &PreviewError{Operation: "image decode", Details: item.Path, Err: err}
	}
	return toRGBA(img), nil
}

func (ReisenFactory) DecodeAudio(item *MediaItem) (*AudioBuffer, error) {
	return decodeAudioBuffer(item)
}

// reisenDecoder implements ClipDecoder over one open reisen media handle.
type reisenDecoder struct {
	media    *reisen.Media
	stream   *reisen.VideoStream
	position float64
	opened   bool
	released bool
}

func openReisenDecoder(item *MediaItem) (ClipDecoder, error) {
	d, err := openWithTimeout(func() (ClipDecoder, error) {
		rd, err := openReisenDecoderBlocking(item)
		if rd == nil {
			return nil, err
		}
		return rd, err
	}, MEDIA_OPEN_TIMEOUT)
	if err == errOpenTimeout {
		return nil, &PreviewError{Operation: "media open", Details: fmt.Sprintf("%s: timeout", item.Path)}
	}
	return d, err
}

var errOpenTimeout = fmt.Errorf("open timed out")

// openWithTimeout bounds how long an open may block. A handle that arrives
// after the deadline has no owner anymore, so the drain releases it instead
// of leaking the underlying ffmpeg state.
func openWithTimeout(open func() (ClipDecoder, error), timeout time.Duration) (ClipDecoder, error) {
	type opened struct {
		d   ClipDecoder
		err error
	}
	ch := make(chan opened, 1)
	go func() {
		d, err := open()
		ch <- opened{d, err}
	}()
	select {
	case o := <-ch:
		return o.d, o.err
	case <-time.After(timeout):
		go func() {
			if o := <-ch; o.d != nil {
				o.d.Release()
			}
		}()
		return nil, errOpenTimeout
	}
}

func openReisenDecoderBlocking(item *MediaItem) (*reisenDecoder, error) {
	media, err := reisen.NewMedia(item.Path)
	if err != nil {
		return nil, &PreviewError{Operation: "media open", Details: item.Path, Err: err}
	}
	streams := media.VideoStreams()
	if len(streams) == 0 {
		media.Close()
		return nil, &PreviewError{Operation: "media open", Details: item.Path + ": no video stream"}
	}
	d := &reisenDecoder{media: media, stream: streams[0]}
	if err := media.OpenDecode(); err != nil {
		media.Close()
		return nil, &PreviewError{Operation: "decode open", Details: item.Path, Err: err}
	}
	if err := d.stream.Open(); err != nil {
		_ = media.CloseDecode()
		media.Close()
		return nil, &PreviewError{Operation: "stream open", Details: item.Path, Err: err}
	}
	d.opened = true
	return d, nil
}

func (d *reisenDecoder) Position() float64 {
	return d.position
}

// FrameAt seeks (only when needed) and decodes until it reaches mediaTime.
func (d *reisenDecoder) FrameAt(mediaTime float64, outW, outH int) (*image.RGBA, error) {
	if !d.opened || d.released {
		return nil, &PreviewError{Operation: "frame decode", Details: "decoder not open"}
	}
	if mediaTime < 0 {
		mediaTime = 0
	}

	behind := mediaTime < d.position-SEEK_EPSILON_BACKWARD
	farAhead := mediaTime > d.position+SEEK_EPSILON_FORWARD
	if behind || farAhead {
		if err := d.stream.Rewind(secondsToDuration(mediaTime)); err != nil {
			return nil, &PreviewError{Operation: "seek", Details: fmt.Sprintf("t=%.3f", mediaTime), Err: err}
		}
		d.position = mediaTime
	}

	frame, err := d.decodeUntil(mediaTime)
	if err != nil {
		return nil, err
	}
	if frame == nil {
		return nil, &PreviewError{Operation: "frame decode", Details: fmt.Sprintf("no frame at t=%.3f", mediaTime)}
	}
	return scaleRGBA(frame, outW, outH), nil
}

// decodeUntil reads packets until a video frame at or past target arrives.
// The settle deadline keeps a bad seek from hanging the render tick.
func (d *reisenDecoder) decodeUntil(target float64) (*image.RGBA, error) {
	deadline := time.Now().Add(SEEK_SETTLE_TIMEOUT)
	var last *image.RGBA
	for {
		if time.Now().After(deadline) {
			// Best effort: present whatever was decoded before the deadline.
			return last, nil
		}
		packet, ok, err := d.media.ReadPacket()
		if err != nil {
			return nil, &PreviewError{Operation: "packet read", Details: "decode", Err: err}
		}
		if !ok {
			// EOF: clamp to the last decodable frame.
			return last, nil
		}
		if packet.Type() != reisen.StreamVideo || packet.StreamIndex() != d.stream.Index() {
			continue
		}
		frame, got, err := d.stream.ReadVideoFrame()
		if err != nil {
			return nil, &PreviewError{Operation: "frame read", Details: "decode", Err: err}
		}
		if !got || frame == nil {
			continue
		}
		pts, err := frame.PresentationOffset()
		if err != nil {
			continue
		}
		d.position = pts.Seconds()
		last = frame.Data()
		if d.position >= target {
			return last, nil
		}
	}
}

func (d *reisenDecoder) Release() {
	if d.released {
		return
	}
	d.released = true
	if d.opened {
		_ = d.stream.Close()
		_ = d.media.CloseDecode()
	}
	d.media.Close()
}

// toRGBA converts any decoded image to RGBA without copying when possible.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(out, out.Bounds(), img, b.Min, xdraw.Src)
	return out
}

// scaleRGBA resizes src to w x h, preserving aspect ratio by letterboxing is
// the caller's concern; layers are placed by transform, so a plain scale to
// the requested raster size is correct here.
func scaleRGBA(src *image.RGBA, w, h int) *image.RGBA {
	if w <= 0 || h <= 0 {
		return src
	}
	b := src.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// ProbeMediaDuration reads a container's duration in seconds without
// decoding. Returns 0 when the container does not carry one.
func ProbeMediaDuration(path string) (float64, error) {
	media, err := reisen.NewMedia(path)
	if err != nil {
		return 0, &PreviewError{Operation: "probe", Details: path, Err: err}
	}
	defer media.Close()
	d, err := media.Duration()
	if err != nil {
		return 0, nil
	}
	return d.Seconds(), nil
}
