// frame_stream.go - Continuous streaming decoder for the playback fast path

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

/*
frame_stream.go - Fast-path continuous decoder

Used only by the single-track hardware fast path. One source stays actively
decoding on a background goroutine while the orchestrator samples the
current presented frame each tick:
- Decoding: a dedicated goroutine reads packets/frames and pushes them into
  a small buffered channel.
- Sampling: FrameFor drains the channel up to the requested media time and
  keeps the newest frame at or before it.
- Drift: when the decode position and the requested time diverge beyond
  STREAM_DRIFT_LIMIT a corrective seek is forced.
*/

package main

import (
	"image"
	"sync"
	"time"

	"github.com/erparts/reisen"
)

type streamFrame struct {
	img *image.RGBA
	pts float64
}

// FrameStream implements StreamDecoder over a reisen media handle.
type FrameStream struct {
	media  *reisen.Media
	stream *reisen.VideoStream

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
	frames   chan streamFrame
	current  *image.RGBA
	position float64
	seekReq  chan float64
}

func openFrameStream(item *MediaItem) (*FrameStream, error) {
	media, err := reisen.NewMedia(item.Path)
	if err != nil {
		return nil, &PreviewError{Operation: "stream open", Details: item.Path, Err: err}
	}
	streams := media.VideoStreams()
	if len(streams) == 0 {
		media.Close()
		return nil, &PreviewError{Operation: "stream open", Details: item.Path + ": no video stream"}
	}
	return &FrameStream{media: media, stream: streams[0]}, nil
}

// Start opens decoding at the given media time and launches the decode loop.
func (fs *FrameStream) Start(at float64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.running {
		return nil
	}
	if err := fs.media.OpenDecode(); err != nil {
		return &PreviewError{Operation: "stream decode open", Details: "fast path", Err: err}
	}
	if err := fs.stream.Open(); err != nil {
		_ = fs.media.CloseDecode()
		return &PreviewError{Operation: "stream open", Details: "fast path", Err: err}
	}
	if at > 0 {
		if err := fs.stream.Rewind(secondsToDuration(at)); err != nil {
			// Non-fatal: decode will run forward from the file start.
			at = 0
		}
	}
	fs.position = at
	fs.stopCh = make(chan struct{})
	fs.frames = make(chan streamFrame, 16)
	fs.seekReq = make(chan float64, 1)
	fs.running = true

	fs.wg.Add(1)
	go fs.decodeLoop()
	return nil
}

// decodeLoop continuously pulls packets and decodes frames until stopped.
// Transient errors back off briefly and continue; the fast path treats any
// missing frame as stale visuals, never a fatal condition.
func (fs *FrameStream) decodeLoop() {
	defer fs.wg.Done()
	for {
		select {
		case <-fs.stopCh:
			return
		case target := <-fs.seekReq:
			if err := fs.stream.Rewind(secondsToDuration(target)); err == nil {
				// Drop frames buffered before the seek point.
				for {
					select {
					case <-fs.frames:
						continue
					default:
					}
					break
				}
			}
		default:
		}

		packet, ok, err := fs.media.ReadPacket()
		if err != nil || !ok {
			select {
			case <-fs.stopCh:
				return
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}
		if packet.Type() != reisen.StreamVideo || packet.StreamIndex() != fs.stream.Index() {
			continue
		}
		frame, got, err := fs.stream.ReadVideoFrame()
		if err != nil || !got || frame == nil {
			continue
		}
		pts, err := frame.PresentationOffset()
		if err != nil {
			continue
		}
		select {
		case <-fs.stopCh:
			return
		case fs.frames <- streamFrame{img: frame.Data(), pts: pts.Seconds()}:
		}
	}
}

// FrameFor returns the newest frame at or before mediaTime. When expected
// and actual decode position drift apart beyond the limit, it requests a
// corrective seek and keeps presenting the stale frame until decode catches
// up.
func (fs *FrameStream) FrameFor(mediaTime float64) *image.RGBA {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.running {
		return fs.current
	}

	for {
		select {
		case f := <-fs.frames:
			if f.pts > mediaTime+STREAM_DRIFT_LIMIT {
				// Decoder ran ahead; keep this frame as current and stop
				// draining, it will be presented when time catches up.
				fs.current = f.img
				fs.position = f.pts
				return fs.current
			}
			fs.current = f.img
			fs.position = f.pts
			if f.pts >= mediaTime {
				return fs.current
			}
		default:
			// Channel drained: check for starvation-driven drift.
			if mediaTime-fs.position > STREAM_DRIFT_LIMIT {
				select {
				case fs.seekReq <- mediaTime:
				default:
				}
			}
			return fs.current
		}
	}
}

func (fs *FrameStream) Position() float64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.position
}

// Stop tears the stream down. Safe to call multiple times.
func (fs *FrameStream) Stop() {
	fs.mu.Lock()
	if !fs.running {
		fs.mu.Unlock()
		return
	}
	fs.running = false
	close(fs.stopCh)
	fs.mu.Unlock()

	fs.wg.Wait()

	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.current = nil
	_ = fs.stream.Close()
	_ = fs.media.CloseDecode()
	fs.media.Close()
}
