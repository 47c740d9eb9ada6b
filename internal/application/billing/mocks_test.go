package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/cflow/backend/internal/domain/billing"
	"github.com/cflow/backend/internal/domain/shared/valueobject"
)

// =============================================================================
// Mock repositories
// =============================================================================

type MockPropertyRepository struct {
	mock.Mock
}

func (m *MockPropertyRepository) ForRenter(ctx context.Context, renterID uuid.UUID) (*billing.Property, error) {
	args := m.Called(ctx, renterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Property), args.Error(1)
}

type MockMeterRepository struct {
	mock.Mock
}

func (m *MockMeterRepository) ForProperty(ctx context.Context, propertyID uuid.UUID) ([]billing.Meter, error) {
	args := m.Called(ctx, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Meter), args.Error(1)
}

type MockMeterReadingRepository struct {
	mock.Mock
}

func (m *MockMeterReadingRepository) BatchForMetersInWindow(ctx context.Context, meterIDs []uuid.UUID, periodStart, periodEnd time.Time, bufferDays int) ([]billing.MeterReading, error) {
	args := m.Called(ctx, meterIDs, periodStart, periodEnd, bufferDays)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.MeterReading), args.Error(1)
}

func (m *MockMeterReadingRepository) BatchForBuildingByType(ctx context.Context, buildingID uuid.UUID, meterType billing.MeterType, periodStart, periodEnd time.Time) ([]billing.MeterReading, error) {
	args := m.Called(ctx, buildingID, meterType, periodStart, periodEnd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.MeterReading), args.Error(1)
}

type MockProviderRepository struct {
	mock.Mock
}

func (m *MockProviderRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Provider, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Provider), args.Error(1)
}

func (m *MockProviderRepository) FindByServiceType(ctx context.Context, tenantID uuid.UUID, serviceType billing.ServiceType) (*billing.Provider, error) {
	args := m.Called(ctx, tenantID, serviceType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Provider), args.Error(1)
}

type MockTariffRepository struct {
	mock.Mock
}

func (m *MockTariffRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Tariff, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Tariff), args.Error(1)
}

func (m *MockTariffRepository) FindCandidates(ctx context.Context, providerID uuid.UUID, onDate time.Time) ([]billing.Tariff, error) {
	args := m.Called(ctx, providerID, onDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Tariff), args.Error(1)
}

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) Create(ctx context.Context, invoice *billing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Finalize(ctx context.Context, invoiceID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, invoiceID, at)
	return args.Error(0)
}

type MockBuildingRepository struct {
	mock.Mock
}

func (m *MockBuildingRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Building, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Building), args.Error(1)
}

func (m *MockBuildingRepository) PropertiesForDistribution(ctx context.Context, buildingID uuid.UUID) ([]billing.Property, error) {
	args := m.Called(ctx, buildingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Property), args.Error(1)
}

func (m *MockBuildingRepository) UpdateCirculationAverage(ctx context.Context, buildingID uuid.UUID, average decimal.Decimal, calculatedAt time.Time) error {
	args := m.Called(ctx, buildingID, average, calculatedAt)
	return args.Error(0)
}

// =============================================================================
// Test cache
// =============================================================================

type circulationCacheKey struct {
	buildingID uuid.UUID
	month      time.Time
}

// memCirculationCache is a plain map-backed cache for service tests
type memCirculationCache struct {
	mu      sync.Mutex
	entries map[circulationCacheKey]valueobject.Money
}

func newMemCirculationCache() *memCirculationCache {
	return &memCirculationCache{entries: make(map[circulationCacheKey]valueobject.Money)}
}

func (c *memCirculationCache) Get(_ context.Context, buildingID uuid.UUID, month time.Time) (valueobject.Money, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cost, ok := c.entries[circulationCacheKey{buildingID: buildingID, month: month}]
	return cost, ok, nil
}

func (c *memCirculationCache) Set(_ context.Context, buildingID uuid.UUID, month time.Time, cost valueobject.Money) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[circulationCacheKey{buildingID: buildingID, month: month}] = cost
	return nil
}

func (c *memCirculationCache) ClearBuilding(_ context.Context, buildingID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key.buildingID == buildingID {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *memCirculationCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[circulationCacheKey]valueobject.Money)
	return nil
}

var errCacheUnavailable = errors.New("cache backend unavailable")

// failingCirculationCache simulates a cache backend outage
type failingCirculationCache struct {
	memCirculationCache
}

func (c *failingCirculationCache) Get(context.Context, uuid.UUID, time.Time) (valueobject.Money, bool, error) {
	return valueobject.Money{}, false, errCacheUnavailable
}

func (c *failingCirculationCache) Set(context.Context, uuid.UUID, time.Time, valueobject.Money) error {
	return errCacheUnavailable
}
