// Package engine orchestrates background collectors for the daemon.
package engine

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/metaoverlayfs/panel/internal/daemon/collector"
	"github.com/metaoverlayfs/panel/internal/daemon/store"
)

// Engine manages and runs all collectors.
type Engine struct {
	store      *store.Store
	collectors []collector.Collector
	logger     *logrus.Entry
}

// New creates a new Engine instance.
func New(st *store.Store, logger *logrus.Entry) *Engine {
	return &Engine{
		store:  st,
		logger: logger,
	}
}

// Register adds a collector to the engine.
func (e *Engine) Register(c collector.Collector) {
	e.collectors = append(e.collectors, c)
}

// Collectors returns the names of the registered collectors.
func (e *Engine) Collectors() []string {
	names := make([]string, len(e.collectors))
	for i, c := range e.collectors {
		names[i] = c.Name()
	}
	return names
}

// Start runs all collectors and blocks until ctx is canceled and every
// collector has returned.
func (e *Engine) Start(ctx context.Context) {
	updates := make(chan store.Update, 100)
	var collectors sync.WaitGroup

	for _, c := range e.collectors {
		collectors.Add(1)
		go func(col collector.Collector) {
			defer collectors.Done()
			log := e.logger.WithField("collector", col.Name())
			log.Info("Starting collector")
			if err := col.Run(ctx, e.store, updates); err != nil {
				log.WithError(err).Error("Collector failed")
			}
		}(c)
	}

	done := make(chan struct{})
	go func() {
		collectors.Wait()
		close(done)
	}()

	for {
		select {
		case u := <-updates:
			e.store.ApplyUpdate(u)
		case <-done:
			return
		}
	}
}

// Store returns the engine's state store.
func (e *Engine) Store() *store.Store {
	return e.store
}
