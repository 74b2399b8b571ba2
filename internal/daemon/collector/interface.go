// Package collector provides background workers that keep the daemon
// state current.
package collector

import (
	"context"

	"github.com/metaoverlayfs/panel/internal/daemon/store"
)

// Collector is a background worker that fetches data and emits updates.
type Collector interface {
	// Name returns the collector's name for logging.
	Name() string

	// Run blocks until ctx is canceled, emitting updates on updates.
	Run(ctx context.Context, st *store.Store, updates chan<- store.Update) error
}

// send delivers u unless ctx ends first.
func send(ctx context.Context, updates chan<- store.Update, u store.Update) {
	select {
	case updates <- u:
	case <-ctx.Done():
	}
}
