//go:build headless

// main_headless.go - Windowless frame renderer

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

package main

import (
	"flag"
	"fmt"
	"image/png"
	"io"
	"os"
)

// The headless build renders one frame of the assembled timeline and writes
// it as PNG. Useful for thumbnail generation and CI smoke checks on machines
// with no display.
func main() {
	var (
		videos string
		images string
		title  string
		at     float64
		out    string
		opts   demoOptions
	)

	flagSet := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&videos, "video", "", "Comma-separated video files, laid out back to back")
	flagSet.StringVar(&images, "image", "", "Comma-separated image files shown as an underlay")
	flagSet.StringVar(&title, "title", "", "Title text overlay")
	flagSet.Float64Var(&at, "at", 0, "Timeline position to render, in seconds")
	flagSet.StringVar(&out, "out", "frame.png", "Output PNG path")
	flagSet.IntVar(&opts.width, "width", PREVIEW_DEFAULT_WIDTH, "Output width in pixels")
	flagSet.IntVar(&opts.height, "height", PREVIEW_DEFAULT_HEIGHT, "Output height in pixels")
	flagSet.BoolVar(&opts.checker, "checker", false, "Paint empty output as a checkerboard")
	flagSet.StringVar(&opts.logLevel, "log", "info", "Log level: debug, info, warn, error")

	flagSet.Usage = func() {
		flagSet.SetOutput(os.Stdout)
		fmt.Println("Usage: ./prism_engine -video a.mp4 [-at 12.5] [-out frame.png]")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	opts.videos = splitPathList(videos)
	opts.images = splitPathList(images)
	opts.title = title
	opts.fps = PREVIEW_DEFAULT_FPS

	log := NewConsoleLogger(opts.logLevel)

	store, err := buildDemoProject(opts)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		flagSet.Usage()
		os.Exit(1)
	}

	sink := NewSnapshotSink()
	session, err := NewPreviewSession(Services{Store: store, Log: log}, sink, SessionConfig{
		Width:        opts.width,
		Height:       opts.height,
		Checkerboard: opts.checker,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer session.Close()

	session.RenderFrameAt(at)
	frame := sink.Snapshot()
	if frame == nil {
		fmt.Println("Error: no frame rendered")
		os.Exit(1)
	}

	f, err := os.Create(out)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()
	if err := png.Encode(f, frame); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s (%.3fs)\n", out, at)
}
