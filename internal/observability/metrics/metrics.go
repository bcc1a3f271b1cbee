package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "fuel_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	closureTotal   *prometheus.CounterVec
	closureLatency *prometheus.HistogramVec

	closureStageItems   *prometheus.CounterVec
	closureStageLatency *prometheus.HistogramVec

	gaugingLookupTotal       *prometheus.CounterVec
	calibrationGenerateTotal *prometheus.CounterVec

	reportExportTotal   *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec
	reportArchiveTotal  *prometheus.CounterVec
)

// Init registers back-office metrics and DB-backed gauges.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		closureTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "closure_total",
				Help: "Total shift closures by final status",
			},
			[]string{"status"},
		)
		closureLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "closure_latency_seconds",
				Help:    "Shift closure latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		)

		closureStageItems = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "closure_stage_items_total",
				Help: "Items handled by closure stage and outcome",
			},
			[]string{"stage", "outcome"},
		)
		closureStageLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "closure_stage_latency_seconds",
				Help:    "Closure stage latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		)

		gaugingLookupTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "gauging_lookup_total",
				Help: "Total calibration lookups by result",
			},
			[]string{"result"},
		)
		calibrationGenerateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "calibration_generate_total",
				Help: "Total calibration table generations by result",
			},
			[]string{"result"},
		)

		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total closure report exports by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Closure report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)
		reportArchiveTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_archive_total",
				Help: "Total closure reports written to the report store by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			closureTotal,
			closureLatency,
			closureStageItems,
			closureStageLatency,
			gaugingLookupTotal,
			calibrationGenerateTotal,
			reportExportTotal,
			reportExportLatency,
			reportArchiveTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveClosure records closure latency and final status.
func ObserveClosure(status string, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	if closureTotal != nil {
		closureTotal.WithLabelValues(status).Inc()
	}
	if closureLatency != nil {
		closureLatency.WithLabelValues(status).Observe(duration.Seconds())
	}
}

// AddClosureStageItems counts items a stage handled with the given outcome.
func AddClosureStageItems(stage, outcome string, count int) {
	if count <= 0 {
		return
	}
	if stage == "" {
		stage = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	if closureStageItems != nil {
		closureStageItems.WithLabelValues(stage, outcome).Add(float64(count))
	}
}

// ObserveClosureStage records stage latency.
func ObserveClosureStage(stage string, duration time.Duration) {
	if stage == "" {
		stage = "unknown"
	}
	if closureStageLatency != nil {
		closureStageLatency.WithLabelValues(stage).Observe(duration.Seconds())
	}
}

// ObserveGaugingLookup counts calibration lookups.
func ObserveGaugingLookup(result string) {
	if result == "" {
		result = resultSuccess
	}
	if gaugingLookupTotal != nil {
		gaugingLookupTotal.WithLabelValues(result).Inc()
	}
}

// ObserveCalibrationGenerate counts calibration generations.
func ObserveCalibrationGenerate(result string) {
	if result == "" {
		result = resultSuccess
	}
	if calibrationGenerateTotal != nil {
		calibrationGenerateTotal.WithLabelValues(result).Inc()
	}
}

// ObserveReportExport records export latency and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// ObserveReportArchive counts report store writes.
func ObserveReportArchive(result string) {
	if result == "" {
		result = resultSuccess
	}
	if reportArchiveTotal != nil {
		reportArchiveTotal.WithLabelValues(result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
