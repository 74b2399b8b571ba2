package logging

import (
	"io"
	"os"
	"sync"
)

// globalWriter delegates to a writer that can be swapped at runtime.
type globalWriter struct {
	mu sync.RWMutex
	w  io.Writer
}

// Write implements the io.Writer interface.
func (gw *globalWriter) Write(p []byte) (n int, err error) {
	gw.mu.RLock()
	defer gw.mu.RUnlock()
	return gw.w.Write(p)
}

func (gw *globalWriter) set(w io.Writer) io.Writer {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	prev := gw.w
	gw.w = w
	return prev
}

var defaultGlobalWriter = &globalWriter{w: os.Stderr}

// SetGlobalOutput redirects the stderr sink of every logger, for example
// while the terminal panel owns the screen. It returns the previous
// destination.
func SetGlobalOutput(w io.Writer) io.Writer {
	return defaultGlobalWriter.set(w)
}

// GetGlobalOutput returns the swappable stderr sink.
func GetGlobalOutput() io.Writer {
	return defaultGlobalWriter
}
