package discovery

import (
	"fmt"
	"strings"
)

// ThreadMode selects the execution context that runs a handler.
type ThreadMode int

const (
	// Posting runs the handler synchronously on the posting goroutine.
	// It is the only mode that may cancel further delivery.
	Posting ThreadMode = iota

	// Main runs the handler on the primary loop. A post made on the
	// primary loop invokes the handler immediately.
	Main

	// MainOrdered always queues the handler on the primary loop, even
	// when posting from it, so delivery never nests inside the poster.
	MainOrdered

	// Background runs the handler on the single sequential background
	// worker when posting from the primary loop, and synchronously otherwise.
	Background

	// Async always runs the handler on the bus worker pool.
	Async
)

// String returns the mode name.
func (m ThreadMode) String() string {
	switch m {
	case Posting:
		return "posting"
	case Main:
		return "main"
	case MainOrdered:
		return "main_ordered"
	case Background:
		return "background"
	case Async:
		return "async"
	default:
		return "unknown"
	}
}

// ParseThreadMode parses a mode name as produced by String.
func ParseThreadMode(s string) (ThreadMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "posting", "":
		return Posting, nil
	case "main":
		return Main, nil
	case "main_ordered", "mainordered":
		return MainOrdered, nil
	case "background":
		return Background, nil
	case "async":
		return Async, nil
	default:
		return Posting, fmt.Errorf("unknown thread mode %q", s)
	}
}
