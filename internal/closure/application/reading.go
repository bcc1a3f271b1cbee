package application

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	masterdata "fuel-backoffice/internal/masterdata/domain"
	"fuel-backoffice/internal/units"
)

var (
	// ErrReadingRegression indicates a current meter reading below the previous one.
	ErrReadingRegression = errors.New("reading regression")
	// ErrNoSale indicates equal readings.
	ErrNoSale = errors.New("no sale")
)

var litersPerGallon = decimal.NewFromFloat(units.LitersPerUSGallon)

// Measurement is the meter delta of one hose in its reading unit and in the
// reporting units.
type Measurement struct {
	Previous  float64
	Current   float64
	Sold      float64
	Unit      units.Unit
	LitersRaw float64
	Liters    float64
	Gallons   float64
}

// Sale is a priced measurement.
type Sale struct {
	Measurement
	PricePerLiter  decimal.Decimal
	PricePerGallon decimal.Decimal
	Value          decimal.Decimal
}

// DispenserReadingProcessor turns a hose meter pair into a sold quantity.
type DispenserReadingProcessor struct{}

// Measure computes sold = current - previous. A regression fails with
// ErrReadingRegression; equal readings return the measurement with ErrNoSale.
// An empty unit means liters.
func (DispenserReadingProcessor) Measure(previous, current float64, unitName string) (Measurement, error) {
	unit := units.Liter
	if unitName != "" {
		parsed, err := units.Parse(unitName)
		if err != nil {
			return Measurement{}, err
		}
		unit = parsed
	}
	m := Measurement{Previous: previous, Current: current, Unit: unit}
	sold := current - previous
	if sold < 0 {
		return m, fmt.Errorf("%w (previous %.2f, current %.2f)", ErrReadingRegression, previous, current)
	}
	if sold == 0 {
		return m, ErrNoSale
	}
	liters, err := units.ToBase(sold, unit)
	if err != nil {
		return Measurement{}, err
	}
	gallons, err := units.FromBase(liters, units.USGallon)
	if err != nil {
		return Measurement{}, err
	}
	m.Sold = sold
	m.LitersRaw = liters
	m.Liters = units.Round2(liters)
	m.Gallons = units.Round2(gallons)
	return m, nil
}

// Price values a measurement at the given liter price. Value is rounded to 2 decimals.
func (DispenserReadingProcessor) Price(m Measurement, pricePerLiter decimal.Decimal) Sale {
	return Sale{
		Measurement:    m,
		PricePerLiter:  pricePerLiter.Round(4),
		PricePerGallon: pricePerLiter.Mul(litersPerGallon).Round(4),
		Value:          decimal.NewFromFloat(m.LitersRaw).Mul(pricePerLiter).Round(2),
	}
}

// Process measures and prices in one step.
func (p DispenserReadingProcessor) Process(previous, current float64, unitName string, pricePerLiter decimal.Decimal) (Sale, error) {
	m, err := p.Measure(previous, current, unitName)
	if err != nil {
		return Sale{Measurement: m}, err
	}
	return p.Price(m, pricePerLiter), nil
}

// History builds the reading history entry appended for a hose.
func (DispenserReadingProcessor) History(id, hoseID, closureID string, m Measurement, recordedAt time.Time) masterdata.ReadingHistory {
	return masterdata.ReadingHistory{
		ID:              id,
		HoseID:          hoseID,
		ClosureID:       closureID,
		PreviousReading: m.Previous,
		CurrentReading:  m.Current,
		Sold:            m.Sold,
		Unit:            string(m.Unit),
		RecordedAt:      recordedAt,
	}
}
