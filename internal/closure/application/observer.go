package application

import (
	"context"
	"time"

	closure "fuel-backoffice/internal/closure/domain"
)

// ItemEvent is emitted for every item a stage handles.
type ItemEvent struct {
	ClosureID     string
	PointOfSaleID string
	Stage         closure.Stage
	Item          string
	Outcome       string
	Message       string
}

// StageEvent is emitted when a stage completes.
type StageEvent struct {
	ClosureID     string
	PointOfSaleID string
	Stage         closure.Stage
	Errors        int
	Warnings      int
	Aborted       bool
	Duration      time.Duration
}

// ClosureEvent is emitted once per closure.
type ClosureEvent struct {
	ClosureID     string
	PointOfSaleID string
	Status        closure.Status
	Errors        int
	Warnings      int
	Duration      time.Duration
}

// Observer receives closure progress events.
type Observer interface {
	ItemProcessed(ctx context.Context, event ItemEvent)
	StageCompleted(ctx context.Context, event StageEvent)
	ClosureCompleted(ctx context.Context, event ClosureEvent)
}

// NopObserver discards events.
type NopObserver struct{}

func (NopObserver) ItemProcessed(context.Context, ItemEvent)       {}
func (NopObserver) StageCompleted(context.Context, StageEvent)     {}
func (NopObserver) ClosureCompleted(context.Context, ClosureEvent) {}

// Observers fans events out to several observers.
type Observers []Observer

func (o Observers) ItemProcessed(ctx context.Context, event ItemEvent) {
	for _, observer := range o {
		if observer != nil {
			observer.ItemProcessed(ctx, event)
		}
	}
}

func (o Observers) StageCompleted(ctx context.Context, event StageEvent) {
	for _, observer := range o {
		if observer != nil {
			observer.StageCompleted(ctx, event)
		}
	}
}

func (o Observers) ClosureCompleted(ctx context.Context, event ClosureEvent) {
	for _, observer := range o {
		if observer != nil {
			observer.ClosureCompleted(ctx, event)
		}
	}
}
