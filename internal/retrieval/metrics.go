package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cyberwiki_cache_hits_total",
		Help: "Cache hits by entity class.",
	}, []string{"entity"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cyberwiki_cache_misses_total",
		Help: "Cache misses by entity class.",
	}, []string{"entity"})

	refreshesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cyberwiki_refreshes_started_total",
		Help: "Background category refresh runs started.",
	})

	refreshesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cyberwiki_refreshes_finished_total",
		Help: "Background category refresh runs finished, by result.",
	}, []string{"result"})
)
