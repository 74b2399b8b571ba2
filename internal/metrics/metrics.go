// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metaoverlay_bridge_commands_total",
		Help: "Commands issued through the command bridge, by result",
	}, []string{"result"})

	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metaoverlay_refresh_cycles_total",
		Help: "Refresh cycles per surface, by result (ok, skipped, failed)",
	}, []string{"surface", "result"})

	refreshDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "metaoverlay_refresh_duration_seconds",
		Help:    "Duration of completed refresh cycles per surface",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"surface"})

	inventorySize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "metaoverlay_inventory_modules",
		Help: "Modules in the last published inventory",
	})

	liveSetSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "metaoverlay_live_set_modules",
		Help: "Identifiers in the last loaded live set",
	})

	togglesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metaoverlay_toggles_total",
		Help: "User toggle actions, by kind (module, live) and result",
	}, []string{"kind", "result"})
)

// ObserveCommand counts one bridge call.
func ObserveCommand(err error) {
	commandsTotal.WithLabelValues(result(err)).Inc()
}

// ObserveRefresh records a finished refresh cycle.
func ObserveRefresh(surface string, d time.Duration, err error) {
	refreshTotal.WithLabelValues(surface, result(err)).Inc()
	refreshDuration.WithLabelValues(surface).Observe(d.Seconds())
}

// ObserveRefreshSkipped counts a tick dropped because a cycle was in flight
// or the surface was inactive.
func ObserveRefreshSkipped(surface string) {
	refreshTotal.WithLabelValues(surface, "skipped").Inc()
}

// SetInventory publishes the sizes of the latest snapshot.
func SetInventory(modules, live int) {
	inventorySize.Set(float64(modules))
	liveSetSize.Set(float64(live))
}

// ObserveToggle counts a user toggle.
func ObserveToggle(kind string, err error) {
	togglesTotal.WithLabelValues(kind, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}
