// Package units converts volumetric quantities between the units used at the
// forecourt. The liter is the base unit.
package units

import (
	"fmt"
	"math"
	"strings"
)

// Unit is a supported volumetric unit.
type Unit string

const (
	Liter      Unit = "liter"
	USGallon   Unit = "us_gallon"
	UKGallon   Unit = "uk_gallon"
	CubicMeter Unit = "cubic_meter"
	Milliliter Unit = "milliliter"
)

// LitersPerUSGallon is the conversion factor used for every gallon figure in reports.
const LitersPerUSGallon = 3.78541

var litersPer = map[Unit]float64{
	Liter:      1,
	USGallon:   LitersPerUSGallon,
	UKGallon:   4.54609,
	CubicMeter: 1000,
	Milliliter: 0.001,
}

var aliases = buildAliases(map[Unit][]string{
	Liter:      {"l", "lt", "lts", "liter", "liters", "litre", "litres", "litro", "litros"},
	USGallon:   {"gal", "gallon", "gallons", "galon", "galón", "galones", "us_gallon", "us gallon"},
	UKGallon:   {"uk_gallon", "uk gallon", "imperial_gallon", "galon_imperial"},
	CubicMeter: {"m3", "m³", "cubic_meter", "cubic meter", "metro_cubico", "metros_cubicos"},
	Milliliter: {"ml", "milliliter", "milliliters", "mililitro", "mililitros"},
})

func buildAliases(groups map[Unit][]string) map[string]Unit {
	out := make(map[string]Unit)
	for unit, names := range groups {
		for _, name := range names {
			out[name] = unit
		}
	}
	return out
}

// UnsupportedUnitError reports a unit name outside the supported set.
type UnsupportedUnitError struct {
	Unit string
}

func (e *UnsupportedUnitError) Error() string {
	return fmt.Sprintf("units: unsupported unit %q", e.Unit)
}

// Parse resolves a unit name or alias, case-insensitively.
func Parse(name string) (Unit, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if unit, ok := aliases[key]; ok {
		return unit, nil
	}
	return "", &UnsupportedUnitError{Unit: name}
}

// Valid reports whether u is one of the supported units.
func (u Unit) Valid() bool {
	_, ok := litersPer[u]
	return ok
}

func (u Unit) String() string { return string(u) }

// LitersPer returns how many liters one u holds.
func LitersPer(u Unit) (float64, error) {
	factor, ok := litersPer[u]
	if !ok {
		return 0, &UnsupportedUnitError{Unit: string(u)}
	}
	return factor, nil
}

// ToBase converts quantity expressed in from into liters.
func ToBase(quantity float64, from Unit) (float64, error) {
	factor, err := LitersPer(from)
	if err != nil {
		return 0, err
	}
	return quantity * factor, nil
}

// FromBase converts liters into to.
func FromBase(liters float64, to Unit) (float64, error) {
	factor, err := LitersPer(to)
	if err != nil {
		return 0, err
	}
	return liters / factor, nil
}

// Convert converts quantity from one unit to another. Equal units return the
// input unchanged.
func Convert(quantity float64, from, to Unit) (float64, error) {
	if from == to {
		if !from.Valid() {
			return 0, &UnsupportedUnitError{Unit: string(from)}
		}
		return quantity, nil
	}
	liters, err := ToBase(quantity, from)
	if err != nil {
		return 0, err
	}
	return FromBase(liters, to)
}

// ConvertNamed parses both unit names and converts.
func ConvertNamed(quantity float64, from, to string) (float64, error) {
	fromUnit, err := Parse(from)
	if err != nil {
		return 0, err
	}
	toUnit, err := Parse(to)
	if err != nil {
		return 0, err
	}
	return Convert(quantity, fromUnit, toUnit)
}

// Round rounds half away from zero to the given number of decimal places.
func Round(value float64, places int) float64 {
	if places < 0 {
		places = 0
	}
	pow := math.Pow(10, float64(places))
	return math.Round(value*pow) / pow
}

// Round2 is Round(value, 2), the precision used for reported volumes.
func Round2(value float64) float64 {
	return Round(value, 2)
}
