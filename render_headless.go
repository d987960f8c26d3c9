//go:build headless

// render_headless.go - Headless builds have no accelerated backend

/*
(c) 2025 - 2026 Prism Engine
https://github.com/prismcut/PrismEngine
License: GPLv3 or later
*/

package main

// newAcceleratedBackend reports no GPU surface in headless builds; the probe
// falls through to the software backend.
func newAcceleratedBackend() RenderBackend {
	return nil
}
