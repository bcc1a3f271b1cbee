package application

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator issues closure and history ids.
type IDGenerator interface {
	NewID() string
}

type uuidGenerator struct{}

func (uuidGenerator) NewID() string { return uuid.NewString() }

// VolumeLookup converts a measured fluid height into liters for a tank.
type VolumeLookup interface {
	LookupVolume(ctx context.Context, tankID string, heightCM float64) (float64, error)
}
