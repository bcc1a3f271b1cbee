package units

import (
	"errors"
	"math"
	"testing"
)

func TestConvertGallonsToLiters(t *testing.T) {
	liters, err := Convert(50, USGallon, Liter)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if Round2(liters) != 189.27 {
		t.Fatalf("expected 189.27, got %v", liters)
	}
}

func TestConvertSameUnitShortCircuits(t *testing.T) {
	got, err := Convert(12.345678, CubicMeter, CubicMeter)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got != 12.345678 {
		t.Fatalf("expected exact input, got %v", got)
	}
}

func TestConvertRoundTrip(t *testing.T) {
	all := []Unit{Liter, USGallon, UKGallon, CubicMeter, Milliliter}
	for _, from := range all {
		for _, to := range all {
			out, err := Convert(123.456, from, to)
			if err != nil {
				t.Fatalf("convert %s->%s: %v", from, to, err)
			}
			back, err := Convert(out, to, from)
			if err != nil {
				t.Fatalf("convert %s->%s: %v", to, from, err)
			}
			if math.Abs(back-123.456) > 1e-9 {
				t.Fatalf("round trip %s->%s drifted: %v", from, to, back)
			}
		}
	}
}

func TestParseAliases(t *testing.T) {
	cases := map[string]Unit{
		"Galones":   USGallon,
		" litros ":  Liter,
		"L":         Liter,
		"m3":        CubicMeter,
		"uk_gallon": UKGallon,
		"ml":        Milliliter,
	}
	for name, want := range cases {
		got, err := Parse(name)
		if err != nil {
			t.Fatalf("parse %q: %v", name, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %s, got %s", name, want, got)
		}
	}
}

func TestUnsupportedUnit(t *testing.T) {
	_, err := ConvertNamed(1, "barrel", "liter")
	var unsupported *UnsupportedUnitError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedUnitError, got %v", err)
	}
	if unsupported.Unit != "barrel" {
		t.Fatalf("expected offending unit barrel, got %q", unsupported.Unit)
	}

	if _, err := Convert(1, Unit("pint"), Unit("pint")); err == nil {
		t.Fatalf("expected error for unknown unit even when equal")
	}
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	if got := Round(2.345, 1); got != 2.3 {
		t.Fatalf("expected 2.3, got %v", got)
	}
	if got := Round(-0.125, 2); got != -0.13 {
		t.Fatalf("expected -0.13, got %v", got)
	}
	if got := Round(0.5, 0); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
}
