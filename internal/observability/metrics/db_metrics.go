package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func registerDBMetrics(db *sql.DB, logger *zap.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "tanks_below_minimum",
			Help: "Tanks whose level is under the configured minimum",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM tanks WHERE minimum_liters > 0 AND level_liters < minimum_liters")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "closures_with_errors_24h",
			Help: "Shift closures in the last 24 hours that did not fully succeed",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM shift_closures WHERE status <> 'succeeded' AND processed_at > NOW() - INTERVAL '24 hours'")
		},
	))
}

func queryCount(db *sql.DB, logger *zap.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Warn("metrics query failed", zap.Error(err))
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
