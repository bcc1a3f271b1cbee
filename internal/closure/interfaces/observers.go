package interfaces

import (
	"context"

	"go.uber.org/zap"

	closureapp "fuel-backoffice/internal/closure/application"
	closure "fuel-backoffice/internal/closure/domain"
	"fuel-backoffice/internal/observability/metrics"
)

// LoggingObserver writes closure progress as structured log events.
type LoggingObserver struct {
	logger *zap.Logger
}

// NewLoggingObserver constructs a LoggingObserver.
func NewLoggingObserver(logger *zap.Logger) *LoggingObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingObserver{logger: logger.Named("closure")}
}

func (o *LoggingObserver) ItemProcessed(_ context.Context, e closureapp.ItemEvent) {
	fields := []zap.Field{
		zap.String("closure_id", e.ClosureID),
		zap.String("point_of_sale_id", e.PointOfSaleID),
		zap.String("stage", string(e.Stage)),
		zap.String("item", e.Item),
		zap.String("outcome", e.Outcome),
	}
	if e.Message != "" {
		fields = append(fields, zap.String("message", e.Message))
	}
	if e.Outcome == closure.OutcomeFailed {
		o.logger.Warn("closure item failed", fields...)
		return
	}
	o.logger.Debug("closure item", fields...)
}

func (o *LoggingObserver) StageCompleted(_ context.Context, e closureapp.StageEvent) {
	o.logger.Info("closure stage",
		zap.String("closure_id", e.ClosureID),
		zap.String("point_of_sale_id", e.PointOfSaleID),
		zap.String("stage", string(e.Stage)),
		zap.Int("errors", e.Errors),
		zap.Int("warnings", e.Warnings),
		zap.Bool("aborted", e.Aborted),
		zap.Duration("duration", e.Duration),
	)
}

func (o *LoggingObserver) ClosureCompleted(_ context.Context, e closureapp.ClosureEvent) {
	fields := []zap.Field{
		zap.String("closure_id", e.ClosureID),
		zap.String("point_of_sale_id", e.PointOfSaleID),
		zap.String("status", string(e.Status)),
		zap.Int("errors", e.Errors),
		zap.Int("warnings", e.Warnings),
		zap.Duration("duration", e.Duration),
	}
	if e.Status == closure.StatusFailed {
		o.logger.Error("closure failed", fields...)
		return
	}
	o.logger.Info("closure completed", fields...)
}

// MetricsObserver feeds the prometheus closure collectors.
type MetricsObserver struct{}

func (MetricsObserver) ItemProcessed(_ context.Context, e closureapp.ItemEvent) {
	metrics.AddClosureStageItems(string(e.Stage), e.Outcome, 1)
}

func (MetricsObserver) StageCompleted(_ context.Context, e closureapp.StageEvent) {
	metrics.ObserveClosureStage(string(e.Stage), e.Duration)
}

func (MetricsObserver) ClosureCompleted(_ context.Context, e closureapp.ClosureEvent) {
	metrics.ObserveClosure(string(e.Status), e.Duration)
}
