package server

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel   = "error_type"
	queryKindLabel = "query_kind"
	indexLabel     = "index"
)

var (
	indexedEntities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spatial_indexed_entities",
		Help: "The number of entities currently indexed.",
	})

	entityInserts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spatial_entity_inserts",
		Help: "The number of entities accepted into the indexes.",
	})

	entityInsertErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_entity_insert_errors",
		Help: "The errors that occurred while inserting entities.",
	}, []string{
		errTypeLabel,
	})

	queryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "spatial_query_latency",
		Help: "The time to answer a spatial query.",
	}, []string{
		indexLabel,
		queryKindLabel,
	})

	realtimeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spatial_realtime_sessions",
		Help: "The number of open realtime sessions.",
	})
)

func instrumentInsert(err error) {
	if err != nil {
		entityInsertErrors.
			With(prometheus.Labels{errTypeLabel: errors.Type(err)}).
			Inc()
		return
	}
	entityInserts.Inc()
}

func instrumentQuery(index, kind string, start time.Time) {
	queryLatency.
		With(prometheus.Labels{
			indexLabel:     index,
			queryKindLabel: kind,
		}).
		Observe(time.Since(start).Seconds())
}
