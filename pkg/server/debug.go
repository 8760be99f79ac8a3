package server

import (
	"log"
	"sync/atomic"
)

// debugMode turns on per-command session logging. Set with -debug or
// WORLD_DEBUG=true.
var debugMode atomic.Bool

// SetDebug enables or disables debug logging.
func SetDebug(on bool) {
	debugMode.Store(on)
	if on {
		log.Printf("[DEBUG] Debug logging enabled")
	}
}

// DebugLog prints a debug message if debug mode is enabled.
func DebugLog(format string, args ...any) {
	if debugMode.Load() {
		log.Printf("[DEBUG] "+format, args...)
	}
}
