package web

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pageViews = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "study",
		Subsystem: "web",
		Name:      "page_views_total",
		Help:      "Page views served, by route.",
	}, []string{"route"})

	gateRedirects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "study",
		Subsystem: "web",
		Name:      "gate_redirects_total",
		Help:      "Requests redirected by the study flow gate, by requested route.",
	}, []string{"route"})

	queueDepthOnce sync.Once
)

// registerQueueDepth exposes the live queue depth as a gauge. Safe to
// call more than once, only the first registration sticks.
func registerQueueDepth(depth func() float64) {
	queueDepthOnce.Do(func() {
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "study",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Operations waiting on the background queue.",
		}, depth)
	})
}
