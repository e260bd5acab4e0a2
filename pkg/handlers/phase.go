// Package handlers holds named render handlers and dispatches lifecycle
// phases to them.
//
// A handler is a bundle of functions keyed by [Phase]. Elements name the
// handlers they use in a comma-separated list; the [Dispatcher] runs one
// handler for one phase and never lets a handler fault escape.
package handlers

import "strings"

// Phase is a binding lifecycle phase.
type Phase int

const (
	// PrepareForDisplay renders a value before the scene becomes visible.
	PrepareForDisplay Phase = iota
	// Load runs once the scene is visible.
	Load
	// Unload tears down what an earlier phase rendered.
	Unload
	// PreviewUpdate renders inside an authoring preview.
	PreviewUpdate
)

func (p Phase) String() string {
	switch p {
	case PrepareForDisplay:
		return "PrepareForDisplay"
	case Load:
		return "Load"
	case Unload:
		return "Unload"
	case PreviewUpdate:
		return "PreviewUpdate"
	default:
		return "Unknown"
	}
}

// EventName returns the host event name for the phase.
func (p Phase) EventName() string {
	switch p {
	case PrepareForDisplay:
		return "HypeScenePrepareForDisplay"
	case Load:
		return "HypeSceneLoad"
	case Unload:
		return "HypeSceneUnload"
	case PreviewUpdate:
		return "HypePreviewUpdate"
	}
	return ""
}

// ParsePhase accepts either a host event name ("HypeSceneLoad") or a short
// name ("load", "Load"). Matching is case-insensitive.
func ParsePhase(name string) (Phase, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "hypescenepreparefordisplay", "preparefordisplay", "prepare":
		return PrepareForDisplay, true
	case "hypesceneload", "load":
		return Load, true
	case "hypesceneunload", "unload":
		return Unload, true
	case "hypepreviewupdate", "previewupdate", "preview":
		return PreviewUpdate, true
	}
	return 0, false
}
