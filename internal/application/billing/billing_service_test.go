package billing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cflow/backend/internal/domain/billing"
	"github.com/cflow/backend/internal/domain/shared"
	"github.com/cflow/backend/internal/domain/shared/valueobject"
)

type billingFixture struct {
	properties *MockPropertyRepository
	meters     *MockMeterRepository
	readings   *MockMeterReadingRepository
	providers  *MockProviderRepository
	tariffs    *MockTariffRepository
	invoices   *MockInvoiceRepository
	buildings  *MockBuildingRepository
	cache      *memCirculationCache
	service    *BillingService
}

func newBillingFixture() *billingFixture {
	f := &billingFixture{
		properties: new(MockPropertyRepository),
		meters:     new(MockMeterRepository),
		readings:   new(MockMeterReadingRepository),
		providers:  new(MockProviderRepository),
		tariffs:    new(MockTariffRepository),
		invoices:   new(MockInvoiceRepository),
		buildings:  new(MockBuildingRepository),
		cache:      newMemCirculationCache(),
	}
	circulation := NewCirculationService(f.buildings, f.readings, f.providers, f.tariffs,
		f.cache, DefaultCirculationSettings(), zap.NewNop())
	f.service = NewBillingService(f.properties, f.meters, f.readings, f.providers,
		f.tariffs, f.invoices, circulation, DefaultBillingSettings(), zap.NewNop())
	return f
}

func testProperty(tenantID uuid.UUID) *billing.Property {
	b := testBuilding(tenantID)
	return &billing.Property{
		TenantEntity: shared.NewTenantEntity(tenantID),
		BuildingID:   b.ID,
		Address:      "Vilniaus g. 10-2",
		AreaSqm:      decimal.NewFromInt(60),
		Building:     b,
	}
}

func propertyMeter(prop *billing.Property, meterType billing.MeterType, provider *billing.Provider) billing.Meter {
	m := billing.Meter{
		TenantEntity: shared.NewTenantEntity(prop.TenantID),
		PropertyID:   prop.ID,
		Type:         meterType,
		SerialNumber: "SN-" + string(meterType),
		Provider:     provider,
	}
	if provider != nil {
		providerID := provider.ID
		m.ProviderID = &providerID
	}
	return m
}

func serviceProvider(tenantID uuid.UUID, service billing.ServiceType) *billing.Provider {
	return &billing.Provider{
		TenantEntity: shared.NewTenantEntity(tenantID),
		Name:         service.DisplayName() + " Co",
		ServiceType:  service,
	}
}

func TestBillingService_GenerateInvoice(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	renterID := uuid.New()
	periodStart := date(2024, 6, 1)
	periodEnd := date(2024, 6, 30)

	t.Run("flat electricity consumption", func(t *testing.T) {
		f := newBillingFixture()
		prop := testProperty(tenantID)
		provider := serviceProvider(tenantID, billing.ServiceTypeElectricity)
		meter := propertyMeter(prop, billing.MeterTypeElectricity, provider)

		f.properties.On("ForRenter", mock.Anything, renterID).Return(prop, nil)
		f.meters.On("ForProperty", mock.Anything, prop.ID).Return([]billing.Meter{meter}, nil)
		f.readings.On("BatchForMetersInWindow", mock.Anything, mock.Anything, periodStart, periodEnd, 7).
			Return([]billing.MeterReading{
				buildingReading(meter.ID, periodStart, 1000),
				buildingReading(meter.ID, periodEnd, 1500),
			}, nil)
		f.tariffs.On("FindCandidates", mock.Anything, provider.ID, periodEnd).
			Return([]billing.Tariff{flatTariffFor(provider.ID, 0.15)}, nil)
		f.invoices.On("Create", mock.Anything, mock.Anything).Return(nil)

		result, err := f.service.GenerateInvoice(ctx, renterID, periodStart, periodEnd)

		require.NoError(t, err)
		require.Len(t, result.Invoice.Items, 1)
		assert.Equal(t, "75.00", result.Invoice.TotalAmount.Amount().StringFixed(2))
		assert.Equal(t, billing.InvoiceStatusDraft, result.Invoice.Status)
		assert.Equal(t, date(2024, 7, 14), result.Invoice.DueDate)
		assert.Empty(t, result.Warnings)
		f.invoices.AssertCalled(t, "Create", mock.Anything, result.Invoice)
	})

	t.Run("all meters load readings in one batched query", func(t *testing.T) {
		f := newBillingFixture()
		prop := testProperty(tenantID)
		provider := serviceProvider(tenantID, billing.ServiceTypeElectricity)
		m1 := propertyMeter(prop, billing.MeterTypeElectricity, provider)
		m2 := propertyMeter(prop, billing.MeterTypeElectricity, provider)
		m3 := propertyMeter(prop, billing.MeterTypeElectricity, provider)

		f.properties.On("ForRenter", mock.Anything, renterID).Return(prop, nil)
		f.meters.On("ForProperty", mock.Anything, prop.ID).Return([]billing.Meter{m1, m2, m3}, nil)
		f.readings.On("BatchForMetersInWindow", mock.Anything,
			mock.MatchedBy(func(ids []uuid.UUID) bool { return len(ids) == 3 }),
			periodStart, periodEnd, 7).
			Return([]billing.MeterReading{
				buildingReading(m1.ID, periodStart, 0), buildingReading(m1.ID, periodEnd, 100),
				buildingReading(m2.ID, periodStart, 0), buildingReading(m2.ID, periodEnd, 200),
				buildingReading(m3.ID, periodStart, 0), buildingReading(m3.ID, periodEnd, 300),
			}, nil)
		f.tariffs.On("FindCandidates", mock.Anything, provider.ID, periodEnd).
			Return([]billing.Tariff{flatTariffFor(provider.ID, 0.10)}, nil)
		f.invoices.On("Create", mock.Anything, mock.Anything).Return(nil)

		result, err := f.service.GenerateInvoice(ctx, renterID, periodStart, periodEnd)

		require.NoError(t, err)
		assert.Len(t, result.Invoice.Items, 3)
		assert.Equal(t, "60.00", result.Invoice.TotalAmount.Amount().StringFixed(2))
		f.readings.AssertNumberOfCalls(t, "BatchForMetersInWindow", 1)
		f.tariffs.AssertNumberOfCalls(t, "FindCandidates", 1)
	})

	t.Run("fixed fee charges once per service across meters", func(t *testing.T) {
		f := newBillingFixture()
		prop := testProperty(tenantID)
		provider := serviceProvider(tenantID, billing.ServiceTypeWater)
		cold := propertyMeter(prop, billing.MeterTypeWaterCold, provider)
		hot := propertyMeter(prop, billing.MeterTypeWaterHot, provider)
		fee := billing.Tariff{
			Name:          "Water Abonent Fee",
			ProviderID:    provider.ID,
			Configuration: billing.NewFixedFeeConfiguration(decimal.NewFromFloat(0.85)),
			ActiveFrom:    date(2020, 1, 1),
		}
		fee.ID = uuid.New()

		f.properties.On("ForRenter", mock.Anything, renterID).Return(prop, nil)
		f.meters.On("ForProperty", mock.Anything, prop.ID).Return([]billing.Meter{cold, hot}, nil)
		f.readings.On("BatchForMetersInWindow", mock.Anything, mock.Anything, periodStart, periodEnd, 7).
			Return([]billing.MeterReading{}, nil)
		f.tariffs.On("FindCandidates", mock.Anything, provider.ID, periodEnd).
			Return([]billing.Tariff{fee}, nil)
		f.invoices.On("Create", mock.Anything, mock.Anything).Return(nil)

		result, err := f.service.GenerateInvoice(ctx, renterID, periodStart, periodEnd)

		require.NoError(t, err)
		require.Len(t, result.Invoice.Items, 1)
		assert.Equal(t, "0.85", result.Invoice.TotalAmount.Amount().StringFixed(2))
	})

	t.Run("missing readings skip the meter with a warning", func(t *testing.T) {
		f := newBillingFixture()
		prop := testProperty(tenantID)
		provider := serviceProvider(tenantID, billing.ServiceTypeElectricity)
		meter := propertyMeter(prop, billing.MeterTypeElectricity, provider)

		f.properties.On("ForRenter", mock.Anything, renterID).Return(prop, nil)
		f.meters.On("ForProperty", mock.Anything, prop.ID).Return([]billing.Meter{meter}, nil)
		f.readings.On("BatchForMetersInWindow", mock.Anything, mock.Anything, periodStart, periodEnd, 7).
			Return([]billing.MeterReading{}, nil)
		f.tariffs.On("FindCandidates", mock.Anything, provider.ID, periodEnd).
			Return([]billing.Tariff{flatTariffFor(provider.ID, 0.15)}, nil)
		f.invoices.On("Create", mock.Anything, mock.Anything).Return(nil)

		result, err := f.service.GenerateInvoice(ctx, renterID, periodStart, periodEnd)

		require.NoError(t, err)
		assert.Empty(t, result.Invoice.Items)
		assert.True(t, result.Invoice.TotalAmount.IsZero())
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], meter.SerialNumber)
	})

	t.Run("strict configuration makes missing readings fatal", func(t *testing.T) {
		f := newBillingFixture()
		prop := testProperty(tenantID)
		provider := serviceProvider(tenantID, billing.ServiceTypeElectricity)
		meter := propertyMeter(prop, billing.MeterTypeElectricity, provider)
		meter.ServiceConfig = &billing.ServiceConfiguration{
			TenantEntity:   shared.NewTenantEntity(tenantID),
			PropertyID:     prop.ID,
			ServiceType:    billing.ServiceTypeElectricity,
			PricingModel:   billing.PricingModelMetered,
			StrictReadings: true,
			EffectiveFrom:  date(2020, 1, 1),
		}

		f.properties.On("ForRenter", mock.Anything, renterID).Return(prop, nil)
		f.meters.On("ForProperty", mock.Anything, prop.ID).Return([]billing.Meter{meter}, nil)
		f.readings.On("BatchForMetersInWindow", mock.Anything, mock.Anything, periodStart, periodEnd, 7).
			Return([]billing.MeterReading{}, nil)
		f.tariffs.On("FindCandidates", mock.Anything, provider.ID, periodEnd).
			Return([]billing.Tariff{flatTariffFor(provider.ID, 0.15)}, nil)

		_, err := f.service.GenerateInvoice(ctx, renterID, periodStart, periodEnd)

		var missing *billing.MissingReadingError
		require.ErrorAs(t, err, &missing)
		f.invoices.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("decreasing readings skip the meter with a warning", func(t *testing.T) {
		f := newBillingFixture()
		prop := testProperty(tenantID)
		provider := serviceProvider(tenantID, billing.ServiceTypeElectricity)
		meter := propertyMeter(prop, billing.MeterTypeElectricity, provider)

		f.properties.On("ForRenter", mock.Anything, renterID).Return(prop, nil)
		f.meters.On("ForProperty", mock.Anything, prop.ID).Return([]billing.Meter{meter}, nil)
		f.readings.On("BatchForMetersInWindow", mock.Anything, mock.Anything, periodStart, periodEnd, 7).
			Return([]billing.MeterReading{
				buildingReading(meter.ID, periodStart, 1500),
				buildingReading(meter.ID, periodEnd, 1000),
			}, nil)
		f.tariffs.On("FindCandidates", mock.Anything, provider.ID, periodEnd).
			Return([]billing.Tariff{flatTariffFor(provider.ID, 0.15)}, nil)
		f.invoices.On("Create", mock.Anything, mock.Anything).Return(nil)

		result, err := f.service.GenerateInvoice(ctx, renterID, periodStart, periodEnd)

		require.NoError(t, err)
		assert.Empty(t, result.Invoice.Items)
		require.Len(t, result.Warnings, 1)
	})

	t.Run("missing electricity tariff aborts the run", func(t *testing.T) {
		f := newBillingFixture()
		prop := testProperty(tenantID)
		provider := serviceProvider(tenantID, billing.ServiceTypeElectricity)
		meter := propertyMeter(prop, billing.MeterTypeElectricity, provider)

		f.properties.On("ForRenter", mock.Anything, renterID).Return(prop, nil)
		f.meters.On("ForProperty", mock.Anything, prop.ID).Return([]billing.Meter{meter}, nil)
		f.readings.On("BatchForMetersInWindow", mock.Anything, mock.Anything, periodStart, periodEnd, 7).
			Return([]billing.MeterReading{}, nil)
		f.tariffs.On("FindCandidates", mock.Anything, provider.ID, periodEnd).
			Return([]billing.Tariff{}, nil)

		_, err := f.service.GenerateInvoice(ctx, renterID, periodStart, periodEnd)

		var missing *billing.MissingTariffError
		require.ErrorAs(t, err, &missing)
		f.invoices.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("water without a tariff falls back to supply and sewage rates", func(t *testing.T) {
		f := newBillingFixture()
		prop := testProperty(tenantID)
		provider := serviceProvider(tenantID, billing.ServiceTypeWater)
		meter := propertyMeter(prop, billing.MeterTypeWaterCold, provider)

		f.properties.On("ForRenter", mock.Anything, renterID).Return(prop, nil)
		f.meters.On("ForProperty", mock.Anything, prop.ID).Return([]billing.Meter{meter}, nil)
		f.readings.On("BatchForMetersInWindow", mock.Anything, mock.Anything, periodStart, periodEnd, 7).
			Return([]billing.MeterReading{
				buildingReading(meter.ID, periodStart, 100),
				buildingReading(meter.ID, periodEnd, 104),
			}, nil)
		f.tariffs.On("FindCandidates", mock.Anything, provider.ID, periodEnd).
			Return([]billing.Tariff{}, nil)
		f.invoices.On("Create", mock.Anything, mock.Anything).Return(nil)

		// 4 m3 * (0.97 + 1.23) = 8.80, plus the 0.85 monthly fee
		result, err := f.service.GenerateInvoice(ctx, renterID, periodStart, periodEnd)

		require.NoError(t, err)
		require.Len(t, result.Invoice.Items, 2)
		assert.Equal(t, "9.65", result.Invoice.TotalAmount.Amount().StringFixed(2))
	})

	t.Run("shared heating service bills the circulation share", func(t *testing.T) {
		f := newBillingFixture()
		prop := testProperty(tenantID)
		prop.ServiceConfigurations = []billing.ServiceConfiguration{{
			TenantEntity:       shared.NewTenantEntity(tenantID),
			PropertyID:         prop.ID,
			ServiceType:        billing.ServiceTypeHeating,
			PricingModel:       billing.PricingModelMetered,
			DistributionMethod: billing.DistributionEqual,
			IsSharedService:    true,
			EffectiveFrom:      date(2020, 1, 1),
		}}

		require.NoError(t, f.cache.Set(ctx, prop.BuildingID, periodStart, valueobject.NewMoneyEURFromFloat(100)))
		others := make([]billing.Property, 0, 10)
		others = append(others, *prop)
		for i := 0; i < 9; i++ {
			others = append(others, *testProperty(tenantID))
		}
		f.buildings.On("PropertiesForDistribution", mock.Anything, prop.BuildingID).Return(others, nil)

		f.properties.On("ForRenter", mock.Anything, renterID).Return(prop, nil)
		f.meters.On("ForProperty", mock.Anything, prop.ID).Return([]billing.Meter{}, nil)
		f.readings.On("BatchForMetersInWindow", mock.Anything, mock.Anything, periodStart, periodEnd, 7).
			Return([]billing.MeterReading{}, nil)
		f.invoices.On("Create", mock.Anything, mock.Anything).Return(nil)

		result, err := f.service.GenerateInvoice(ctx, renterID, periodStart, periodEnd)

		require.NoError(t, err)
		require.Len(t, result.Invoice.Items, 1)
		item := result.Invoice.Items[0]
		assert.Equal(t, "Heating - Circulation", item.Description)
		assert.Equal(t, "10.00", item.Amount.Amount().StringFixed(2))
		assert.Equal(t, "shared_circulation", item.Snapshot.ChargeType)
		require.NotNil(t, item.Snapshot.BuildingID)
		assert.Equal(t, prop.BuildingID, *item.Snapshot.BuildingID)
	})

	t.Run("shared meters are excluded from individual billing", func(t *testing.T) {
		f := newBillingFixture()
		prop := testProperty(tenantID)
		provider := serviceProvider(tenantID, billing.ServiceTypeHeating)
		meter := propertyMeter(prop, billing.MeterTypeHeating, provider)
		meter.ServiceConfig = &billing.ServiceConfiguration{
			TenantEntity:       shared.NewTenantEntity(tenantID),
			PropertyID:         prop.ID,
			ServiceType:        billing.ServiceTypeHeating,
			DistributionMethod: billing.DistributionEqual,
			IsSharedService:    true,
			EffectiveFrom:      date(2020, 1, 1),
		}

		f.properties.On("ForRenter", mock.Anything, renterID).Return(prop, nil)
		f.meters.On("ForProperty", mock.Anything, prop.ID).Return([]billing.Meter{meter}, nil)
		f.readings.On("BatchForMetersInWindow", mock.Anything, mock.Anything, periodStart, periodEnd, 7).
			Return([]billing.MeterReading{
				buildingReading(meter.ID, periodStart, 0),
				buildingReading(meter.ID, periodEnd, 500),
			}, nil)
		f.invoices.On("Create", mock.Anything, mock.Anything).Return(nil)

		result, err := f.service.GenerateInvoice(ctx, renterID, periodStart, periodEnd)

		require.NoError(t, err)
		assert.Empty(t, result.Invoice.Items)
		f.tariffs.AssertNotCalled(t, "FindCandidates", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("time-of-use meter bills each zone at its rate", func(t *testing.T) {
		f := newBillingFixture()
		prop := testProperty(tenantID)
		provider := serviceProvider(tenantID, billing.ServiceTypeElectricity)
		meter := propertyMeter(prop, billing.MeterTypeElectricity, provider)
		meter.SupportsZones = true
		tou := billing.Tariff{
			Name:       "Day Night",
			ProviderID: provider.ID,
			Configuration: billing.NewTimeOfUseConfiguration(map[string]decimal.Decimal{
				"day":   decimal.NewFromFloat(0.20),
				"night": decimal.NewFromFloat(0.10),
			}),
			ActiveFrom: date(2020, 1, 1),
		}
		tou.ID = uuid.New()

		day1 := buildingReading(meter.ID, periodStart, 1000)
		day1.Zone = "day"
		day2 := buildingReading(meter.ID, periodEnd, 1200)
		day2.Zone = "day"
		night1 := buildingReading(meter.ID, periodStart, 500)
		night1.Zone = "night"
		night2 := buildingReading(meter.ID, periodEnd, 580)
		night2.Zone = "night"

		f.properties.On("ForRenter", mock.Anything, renterID).Return(prop, nil)
		f.meters.On("ForProperty", mock.Anything, prop.ID).Return([]billing.Meter{meter}, nil)
		f.readings.On("BatchForMetersInWindow", mock.Anything, mock.Anything, periodStart, periodEnd, 7).
			Return([]billing.MeterReading{day1, day2, night1, night2}, nil)
		f.tariffs.On("FindCandidates", mock.Anything, provider.ID, periodEnd).
			Return([]billing.Tariff{tou}, nil)
		f.invoices.On("Create", mock.Anything, mock.Anything).Return(nil)

		// 200 * 0.20 + 80 * 0.10 = 48.00
		result, err := f.service.GenerateInvoice(ctx, renterID, periodStart, periodEnd)

		require.NoError(t, err)
		require.Len(t, result.Invoice.Items, 2)
		assert.Equal(t, "48.00", result.Invoice.TotalAmount.Amount().StringFixed(2))
	})

	t.Run("tariff is resolved against the period end", func(t *testing.T) {
		f := newBillingFixture()
		prop := testProperty(tenantID)
		provider := serviceProvider(tenantID, billing.ServiceTypeElectricity)
		meter := propertyMeter(prop, billing.MeterTypeElectricity, provider)
		newTariff := flatTariffFor(provider.ID, 0.18)
		newTariff.Name = "Tariff B"
		newTariff.ActiveFrom = date(2024, 6, 1)

		f.properties.On("ForRenter", mock.Anything, renterID).Return(prop, nil)
		f.meters.On("ForProperty", mock.Anything, prop.ID).Return([]billing.Meter{meter}, nil)
		f.readings.On("BatchForMetersInWindow", mock.Anything, mock.Anything, periodStart, periodEnd, 7).
			Return([]billing.MeterReading{
				buildingReading(meter.ID, periodStart, 0),
				buildingReading(meter.ID, periodEnd, 100),
			}, nil)
		f.tariffs.On("FindCandidates", mock.Anything, provider.ID, periodEnd).
			Return([]billing.Tariff{newTariff}, nil)
		f.invoices.On("Create", mock.Anything, mock.Anything).Return(nil)

		result, err := f.service.GenerateInvoice(ctx, renterID, periodStart, periodEnd)

		require.NoError(t, err)
		require.Len(t, result.Invoice.Items, 1)
		assert.Equal(t, "18.00", result.Invoice.TotalAmount.Amount().StringFixed(2))
		assert.Equal(t, "Tariff B", result.Invoice.Items[0].Snapshot.TariffName)
	})
}

func TestBillingService_FinalizeInvoice(t *testing.T) {
	ctx := context.Background()

	t.Run("delegates the conditional transition to the repository", func(t *testing.T) {
		f := newBillingFixture()
		invoiceID := uuid.New()
		f.invoices.On("Finalize", mock.Anything, invoiceID, mock.Anything).Return(nil)

		require.NoError(t, f.service.FinalizeInvoice(ctx, invoiceID))
		f.invoices.AssertCalled(t, "Finalize", mock.Anything, invoiceID, mock.Anything)
	})

	t.Run("propagates a lost finalization race", func(t *testing.T) {
		f := newBillingFixture()
		invoiceID := uuid.New()
		f.invoices.On("Finalize", mock.Anything, invoiceID, mock.Anything).
			Return(billing.NewConcurrentFinalizationError(invoiceID, billing.InvoiceStatusFinalized))

		err := f.service.FinalizeInvoice(ctx, invoiceID)

		var conflict *billing.ConcurrentFinalizationError
		assert.ErrorAs(t, err, &conflict)
	})
}
