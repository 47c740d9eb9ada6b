package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cflow/backend/internal/domain/billing"
	"github.com/cflow/backend/internal/domain/shared/valueobject"
)

// BillingSettings parameterizes invoice generation
type BillingSettings struct {
	// ReadingBufferDays widens the reading window past the period edges
	ReadingBufferDays int

	// DueDays sets the invoice due date relative to the period end
	DueDays int

	// Water pricing defaults applied when no water tariff is configured:
	// consumption is priced at supply + sewage per m3 plus a monthly fee
	WaterSupplyRate decimal.Decimal
	WaterSewageRate decimal.Decimal
	WaterFixedFee   decimal.Decimal

	// StrictZones fails generation on time-of-use zones missing a rate
	// instead of skipping them
	StrictZones bool
}

// DefaultBillingSettings returns the standard parameter set
func DefaultBillingSettings() BillingSettings {
	return BillingSettings{
		ReadingBufferDays: billing.DefaultReadingBufferDays,
		DueDays:           14,
		WaterSupplyRate:   decimal.NewFromFloat(0.97),
		WaterSewageRate:   decimal.NewFromFloat(1.23),
		WaterFixedFee:     decimal.NewFromFloat(0.85),
	}
}

// GenerateResult is the outcome of one invoice generation: the persisted
// draft plus any warnings for meters that contributed no charge
type GenerateResult struct {
	Invoice  *billing.Invoice
	Warnings []string
}

// BillingService orchestrates invoice generation for a renter and billing
// period.
//
// One run issues a bounded number of storage round trips regardless of the
// meter count: the property load, the meter load, one batched readings
// query, at most one provider and one tariff lookup per service type, and
// the final atomic invoice write. All per-run caches are created inside
// GenerateInvoice, so nothing leaks across runs or tenants.
type BillingService struct {
	properties  billing.PropertyRepository
	meters      billing.MeterRepository
	readings    billing.MeterReadingRepository
	providers   billing.ProviderRepository
	tariffs     billing.TariffRepository
	invoices    billing.InvoiceRepository
	circulation *CirculationService
	settings    BillingSettings
	logger      *zap.Logger
	now         func() time.Time
}

// NewBillingService creates a BillingService
func NewBillingService(
	properties billing.PropertyRepository,
	meters billing.MeterRepository,
	readings billing.MeterReadingRepository,
	providers billing.ProviderRepository,
	tariffs billing.TariffRepository,
	invoices billing.InvoiceRepository,
	circulation *CirculationService,
	settings BillingSettings,
	logger *zap.Logger,
) *BillingService {
	return &BillingService{
		properties:  properties,
		meters:      meters,
		readings:    readings,
		providers:   providers,
		tariffs:     tariffs,
		invoices:    invoices,
		circulation: circulation,
		settings:    settings,
		logger:      logger,
		now:         time.Now,
	}
}

// GenerateInvoice builds and persists a draft invoice covering the renter's
// consumption in [periodStart, periodEnd]. A still-draft invoice for the
// same renter and period is replaced atomically.
//
// Missing readings and negative consumption skip the affected meter and
// accumulate warnings (unless the service is configured strict); a missing
// tariff aborts the run, except for water, which falls back to the
// configured supply and sewage rates.
func (s *BillingService) GenerateInvoice(ctx context.Context, renterID uuid.UUID, periodStart, periodEnd time.Time) (*GenerateResult, error) {
	property, err := s.properties.ForRenter(ctx, renterID)
	if err != nil {
		return nil, err
	}

	meters, err := s.meters.ForProperty(ctx, property.ID)
	if err != nil {
		return nil, err
	}

	meterIDs := make([]uuid.UUID, len(meters))
	for i := range meters {
		meterIDs[i] = meters[i].ID
	}
	batch, err := s.readings.BatchForMetersInWindow(ctx, meterIDs, periodStart, periodEnd, s.settings.ReadingBufferDays)
	if err != nil {
		return nil, err
	}

	run := &billingRun{
		service:        s,
		property:       property,
		periodStart:    periodStart,
		periodEnd:      periodEnd,
		readings:       billing.NewReadingResolver(batch, s.settings.ReadingBufferDays),
		tariffResolver: billing.NewTariffResolver(s.tariffs),
		engine:         billing.NewPricingEngine(s.settings.StrictZones),
		providerCache:  make(map[billing.ServiceType]*billing.Provider),
		feeCharged:     make(map[billing.ServiceType]bool),
	}

	for i := range meters {
		if err := run.billMeter(ctx, &meters[i]); err != nil {
			return nil, err
		}
	}
	if err := run.billSharedServices(ctx); err != nil {
		return nil, err
	}

	invoice := billing.NewInvoice(property.TenantID, renterID, property.ID,
		periodStart, periodEnd, periodEnd.AddDate(0, 0, s.settings.DueDays))
	invoice.AttachItems(run.items)

	if err := s.invoices.Create(ctx, invoice); err != nil {
		return nil, err
	}

	s.logger.Info("invoice generated",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("renter_id", renterID.String()),
		zap.String("period_start", periodStart.Format("2006-01-02")),
		zap.String("total", invoice.TotalAmount.String()),
		zap.Int("items", len(invoice.Items)),
		zap.Int("warnings", len(run.warnings)))

	return &GenerateResult{Invoice: invoice, Warnings: run.warnings}, nil
}

// FinalizeInvoice transitions a draft invoice to finalized. The conditional
// update in the repository guarantees at most one concurrent caller wins.
func (s *BillingService) FinalizeInvoice(ctx context.Context, invoiceID uuid.UUID) error {
	return s.invoices.Finalize(ctx, invoiceID, s.now())
}

// GetInvoice retrieves an invoice with its items
func (s *BillingService) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*billing.Invoice, error) {
	return s.invoices.FindByID(ctx, invoiceID)
}

// billingRun carries the per-run state of one invoice generation
type billingRun struct {
	service        *BillingService
	property       *billing.Property
	periodStart    time.Time
	periodEnd      time.Time
	readings       *billing.ReadingResolver
	tariffResolver *billing.TariffResolver
	engine         *billing.PricingEngine
	providerCache  map[billing.ServiceType]*billing.Provider
	feeCharged     map[billing.ServiceType]bool
	items          []billing.InvoiceItem
	warnings       []string
}

func (r *billingRun) billMeter(ctx context.Context, meter *billing.Meter) error {
	service := meter.Type.ServiceType()
	if service == "" {
		r.warnf("meter %s: unbillable meter type %q skipped", meter.SerialNumber, meter.Type)
		return nil
	}

	cfg := r.serviceConfig(meter, service)
	if cfg != nil && cfg.IsSharedService {
		// billed at building level through the circulation share
		return nil
	}

	tariff, err := r.resolveTariff(ctx, meter, service, cfg)
	if err != nil {
		var missing *billing.MissingTariffError
		if errors.As(err, &missing) && service == billing.ServiceTypeWater {
			consumptions, cerr := r.resolveConsumptions(meter, cfg)
			if cerr != nil {
				return cerr
			}
			r.billWaterFallback(meter, consumptions)
			return nil
		}
		return err
	}

	if tariff.Configuration.Kind == billing.TariffKindFixedFee {
		if r.feeCharged[service] {
			return nil
		}
		r.feeCharged[service] = true
		priced, err := r.engine.Price(meter, nil, tariff)
		if err != nil {
			return err
		}
		r.items = append(r.items, priced...)
		return nil
	}

	consumptions, err := r.resolveConsumptions(meter, cfg)
	if err != nil {
		return err
	}

	priced, err := r.engine.Price(meter, consumptions, tariff)
	if err != nil {
		return err
	}
	r.items = append(r.items, priced...)

	if service == billing.ServiceTypeWater && cfg != nil && cfg.PricingModel == billing.PricingModelComposite {
		r.billWaterFee()
	}
	return nil
}

// resolveConsumptions walks the meter's zones and turns reading windows into
// consumption deltas, downgrading missing or decreasing readings to flagged
// zero entries unless the service is configured strict
func (r *billingRun) resolveConsumptions(meter *billing.Meter, cfg *billing.ServiceConfiguration) ([]billing.Consumption, error) {
	strict := cfg != nil && cfg.StrictReadings

	zones := []string{""}
	if meter.SupportsZones {
		if observed := r.readings.Zones(meter.ID, r.periodStart, r.periodEnd); len(observed) > 0 {
			zones = observed
		}
	}

	consumptions := make([]billing.Consumption, 0, len(zones))
	for _, zone := range zones {
		window, err := r.readings.Window(meter.ID, zone, r.periodStart, r.periodEnd)
		if err != nil {
			if strict {
				return nil, err
			}
			r.warnf("meter %s: %v", meter.SerialNumber, err)
			consumptions = append(consumptions, billing.FlaggedZeroConsumption(zone))
			continue
		}

		c, err := billing.ComputeConsumption(window)
		if err != nil {
			r.warnf("meter %s: %v", meter.SerialNumber, err)
			consumptions = append(consumptions, billing.FlaggedZeroConsumption(zone))
			continue
		}
		consumptions = append(consumptions, c)
	}
	return consumptions, nil
}

func (r *billingRun) resolveTariff(ctx context.Context, meter *billing.Meter, service billing.ServiceType, cfg *billing.ServiceConfiguration) (*billing.Tariff, error) {
	if cfg != nil && cfg.TariffOverrideID != nil {
		return r.service.tariffs.FindByID(ctx, *cfg.TariffOverrideID)
	}

	provider, err := r.resolveProvider(ctx, meter, service, cfg)
	if err != nil {
		return nil, err
	}
	return r.tariffResolver.Resolve(ctx, provider.ID, service, r.periodEnd)
}

// resolveProvider picks the provider in precedence order: configuration
// override, the meter's own provider, then the tenant default for the
// service type. Tenant defaults are cached for the run.
func (r *billingRun) resolveProvider(ctx context.Context, meter *billing.Meter, service billing.ServiceType, cfg *billing.ServiceConfiguration) (*billing.Provider, error) {
	if cfg != nil && cfg.ProviderOverrideID != nil {
		return r.service.providers.FindByID(ctx, *cfg.ProviderOverrideID)
	}
	if meter.Provider != nil {
		return meter.Provider, nil
	}
	if meter.ProviderID != nil {
		return r.service.providers.FindByID(ctx, *meter.ProviderID)
	}

	if cached, ok := r.providerCache[service]; ok {
		return cached, nil
	}
	provider, err := r.service.providers.FindByServiceType(ctx, r.property.TenantID, service)
	if err != nil {
		return nil, err
	}
	r.providerCache[service] = provider
	return provider, nil
}

// serviceConfig resolves the configuration for a meter's service, preferring
// the one the meter repository attached
func (r *billingRun) serviceConfig(meter *billing.Meter, service billing.ServiceType) *billing.ServiceConfiguration {
	if meter.ServiceConfig != nil && meter.ServiceConfig.IsEffectiveOn(r.periodEnd) {
		return meter.ServiceConfig
	}
	return r.property.ServiceConfigurationFor(service, r.periodEnd)
}

// billWaterFallback prices water consumption at the configured supply plus
// sewage rates when no water tariff exists, plus the monthly fixed fee
func (r *billingRun) billWaterFallback(meter *billing.Meter, consumptions []billing.Consumption) {
	rate := r.service.settings.WaterSupplyRate.Add(r.service.settings.WaterSewageRate)
	for _, c := range consumptions {
		if c.Flagged || c.IsZero() {
			continue
		}
		snap := billing.ItemSnapshot{
			MeterID:     &meter.ID,
			MeterSerial: meter.SerialNumber,
			Zone:        c.Zone,
			TariffName:  "Water Supply & Sewage",
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
		r.items = append(r.items, billing.NewInvoiceItem(
			meter.Type.DisplayName(), c.Delta, meter.Type.Unit(), rate, snap))
	}
	r.billWaterFee()
}

// billWaterFee adds the monthly water fixed fee, at most once per invoice
func (r *billingRun) billWaterFee() {
	if r.feeCharged[billing.ServiceTypeWater] {
		return
	}
	r.feeCharged[billing.ServiceTypeWater] = true
	r.items = append(r.items, billing.NewFixedInvoiceItem(
		"Water - Fixed Fee",
		valueobject.NewMoneyEUR(r.service.settings.WaterFixedFee),
		billing.ItemSnapshot{ChargeType: "fixed_fee"},
	))
}

// billSharedServices appends one circulation share item per shared service
// configured on the property
func (r *billingRun) billSharedServices(ctx context.Context) error {
	for i := range r.property.ServiceConfigurations {
		cfg := &r.property.ServiceConfigurations[i]
		if !cfg.IsSharedService || !cfg.IsEffectiveOn(r.periodEnd) {
			continue
		}

		share, err := r.service.circulation.ShareForProperty(ctx,
			r.property.BuildingID, r.property.ID, r.periodStart, cfg.DistributionMethod)
		if err != nil {
			return err
		}

		r.items = append(r.items, billing.NewFixedInvoiceItem(
			fmt.Sprintf("%s - Circulation", cfg.ServiceType.DisplayName()),
			share,
			billing.ItemSnapshot{
				BuildingID: &r.property.BuildingID,
				ChargeType: "shared_circulation",
			},
		))
	}
	return nil
}

func (r *billingRun) warnf(format string, args ...any) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}
