package billing

import (
	"fmt"

	"github.com/cflow/backend/internal/domain/shared"
	"github.com/cflow/backend/internal/domain/shared/valueobject"
)

// PricingEngine turns consumption and a resolved tariff into priced invoice
// items. Stateless apart from its strictness setting, so one engine serves
// all billing runs.
type PricingEngine struct {
	// strictZones rejects time-of-use zones missing from the tariff's rate
	// table instead of falling back to the tariff's default zone rate
	strictZones bool
}

// NewPricingEngine creates a pricing engine
func NewPricingEngine(strictZones bool) *PricingEngine {
	return &PricingEngine{strictZones: strictZones}
}

// Price produces the invoice items for one meter's consumption under the
// given tariff. Flat and time-of-use tariffs yield one item per consumption
// entry with a positive delta; fixed-fee tariffs yield exactly one item
// regardless of consumption (the orchestrator dedupes fixed fees across
// meters of the same service). Amounts are rounded half-up to currency
// precision here, at item creation, never at totals time.
func (e *PricingEngine) Price(meter *Meter, consumptions []Consumption, tariff *Tariff) ([]InvoiceItem, error) {
	switch tariff.Configuration.Kind {
	case TariffKindFlat:
		return e.priceMetered(meter, consumptions, tariff)
	case TariffKindTimeOfUse:
		return e.priceMetered(meter, consumptions, tariff)
	case TariffKindFixedFee:
		return []InvoiceItem{e.fixedFeeItem(meter, tariff)}, nil
	default:
		return nil, shared.NewDomainError("INVALID_TARIFF_CONFIG", fmt.Sprintf("Unknown tariff kind: %q", tariff.Configuration.Kind))
	}
}

func (e *PricingEngine) priceMetered(meter *Meter, consumptions []Consumption, tariff *Tariff) ([]InvoiceItem, error) {
	items := make([]InvoiceItem, 0, len(consumptions))
	for _, c := range consumptions {
		if c.Flagged || c.IsZero() {
			continue
		}

		rate, err := tariff.RatePerUnit(c.Zone)
		if err != nil {
			if e.strictZones || tariff.Configuration.Kind != TariffKindTimeOfUse {
				return nil, err
			}
			continue
		}

		items = append(items, NewInvoiceItem(
			itemDescription(meter, c.Zone),
			c.Delta,
			meter.Type.Unit(),
			rate,
			consumptionSnapshot(meter, c, tariff),
		))
	}
	return items, nil
}

func (e *PricingEngine) fixedFeeItem(meter *Meter, tariff *Tariff) InvoiceItem {
	amount := valueobject.NewMoneyEUR(tariff.Configuration.Amount)
	return NewFixedInvoiceItem(
		fmt.Sprintf("%s - Fixed Fee", meter.Type.ServiceType().DisplayName()),
		amount,
		ItemSnapshot{
			TariffID:   &tariff.ID,
			TariffName: tariff.Name,
			ChargeType: "fixed_fee",
		},
	)
}

func itemDescription(meter *Meter, zone string) string {
	if zone != "" {
		return fmt.Sprintf("%s (%s)", meter.Type.DisplayName(), zone)
	}
	return meter.Type.DisplayName()
}

func consumptionSnapshot(meter *Meter, c Consumption, tariff *Tariff) ItemSnapshot {
	snap := ItemSnapshot{
		MeterID:     &meter.ID,
		MeterSerial: meter.SerialNumber,
		Zone:        c.Zone,
		TariffID:    &tariff.ID,
		TariffName:  tariff.Name,
		ChargeType:  "consumption",
	}
	if c.Window.AtOrBefore != nil {
		snap.StartReadingID = &c.Window.AtOrBefore.ID
		snap.StartValue = c.Window.AtOrBefore.Value.StringFixed(2)
		snap.StartDate = c.Window.AtOrBefore.ReadingDate.Format("2006-01-02")
	}
	if c.Window.AtOrAfter != nil {
		snap.EndReadingID = &c.Window.AtOrAfter.ID
		snap.EndValue = c.Window.AtOrAfter.Value.StringFixed(2)
		snap.EndDate = c.Window.AtOrAfter.ReadingDate.Format("2006-01-02")
	}
	return snap
}
