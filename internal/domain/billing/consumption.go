package billing

import (
	"github.com/shopspring/decimal"
)

// Consumption is the metered delta for one meter and zone across a billing
// period. Flagged marks a zone that had no complete reading pair and
// therefore contributed zero.
type Consumption struct {
	Zone    string
	Delta   decimal.Decimal
	Window  ReadingWindow
	Flagged bool
}

// IsZero reports whether the delta is zero
func (c Consumption) IsZero() bool {
	return c.Delta.IsZero()
}

// ComputeConsumption turns a resolved reading pair into a consumption delta.
// delta = after.Value - before.Value. A negative delta yields a
// NegativeConsumptionError instead of a negative charge; the caller decides
// whether to skip or abort.
func ComputeConsumption(window ReadingWindow) (Consumption, error) {
	before := window.AtOrBefore
	after := window.AtOrAfter

	delta := after.Value.Sub(before.Value)
	if delta.IsNegative() {
		return Consumption{}, NewNegativeConsumptionError(before.MeterID, before.Zone, delta)
	}

	return Consumption{
		Zone:   before.Zone,
		Delta:  delta,
		Window: window,
	}, nil
}

// FlaggedZeroConsumption builds the zero contribution recorded for a zone
// that has no complete reading pair within the buffer
func FlaggedZeroConsumption(zone string) Consumption {
	return Consumption{Zone: zone, Delta: decimal.Zero, Flagged: true}
}
