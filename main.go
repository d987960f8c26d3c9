//go:build !headless

// main.go - Standalone preview player

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

func main() {
	var (
		videos   string
		images   string
		audios   string
		title    string
		subtitle string
		opts     demoOptions
	)

	flagSet := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&videos, "video", "", "Comma-separated video files, laid out back to back")
	flagSet.StringVar(&images, "image", "", "Comma-separated image files shown as an underlay")
	flagSet.StringVar(&audios, "audio", "", "Comma-separated audio files on their own lane")
	flagSet.StringVar(&title, "title", "", "Title text overlay")
	flagSet.StringVar(&subtitle, "subtitle", "", "Subtitle text shown for the whole program")
	flagSet.IntVar(&opts.width, "width", PREVIEW_DEFAULT_WIDTH, "Output width in pixels")
	flagSet.IntVar(&opts.height, "height", PREVIEW_DEFAULT_HEIGHT, "Output height in pixels")
	flagSet.IntVar(&opts.fps, "fps", PREVIEW_DEFAULT_FPS, "Preview frame rate")
	flagSet.BoolVar(&opts.loop, "loop", false, "Loop at the end of the timeline")
	flagSet.BoolVar(&opts.software, "software", false, "Force the software render backend")
	flagSet.BoolVar(&opts.checker, "checker", false, "Paint empty output as a checkerboard")
	flagSet.StringVar(&opts.logLevel, "log", "info", "Log level: debug, info, warn, error")

	flagSet.Usage = func() {
		flagSet.SetOutput(os.Stdout)
		fmt.Println("Usage: ./prism_engine -video a.mp4,b.mp4 [-image bg.png] [-audio music.mp3] [-title text]")
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
	opts.audios = splitPathList(audios)
	opts.title = title
	opts.subtitle = subtitle

	log := NewConsoleLogger(opts.logLevel)

	store, err := buildDemoProject(opts)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		flagSet.Usage()
		os.Exit(1)
	}

	window := NewPreviewWindow(opts.width, opts.height, "Prism Engine Preview")
	session, err := NewPreviewSession(Services{Store: store, Log: log}, window, SessionConfig{
		Width:         opts.width,
		Height:        opts.height,
		FPS:           opts.fps,
		ForceSoftware: opts.software,
		Loop:          opts.loop,
		Checkerboard:  opts.checker,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	window.AttachSession(session)

	session.Play()
	if err := window.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
	}
	if err := session.Close(); err != nil {
		log.Warn().Err(err).Msg("session close")
	}
}
