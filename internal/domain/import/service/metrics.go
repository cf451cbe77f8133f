package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess          = "success"
	outcomeFormatError      = "format_error"
	outcomeMappingError     = "mapping_error"
	outcomeEmptyResult      = "empty_result"
	outcomePersistenceError = "persistence_error"
)

var (
	importsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vibefinance",
		Subsystem: "import",
		Name:      "runs_total",
		Help:      "Import runs by outcome.",
	}, []string{"outcome"})

	rowsImportedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vibefinance",
		Subsystem: "import",
		Name:      "rows_total",
		Help:      "Imported rows by record type.",
	}, []string{"type"})
)

func observeRowStats(stats ImportStats) {
	rowsImportedTotal.WithLabelValues("survival_fixed").Add(float64(stats.SurvivalFixed))
	rowsImportedTotal.WithLabelValues("survival_variable").Add(float64(stats.SurvivalVariable))
	rowsImportedTotal.WithLabelValues("lifestyle").Add(float64(stats.Lifestyle))
	rowsImportedTotal.WithLabelValues("project").Add(float64(stats.Project))
}
