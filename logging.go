// logging.go - Structured logging setup for the preview engine

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

package main

import (
	"os"

	"github.com/rs/zerolog"
)

// NewConsoleLogger builds the process logger used by the demo binary.
// Pipeline components receive a child logger through Services; tests inject
// zerolog.Nop().
func NewConsoleLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
