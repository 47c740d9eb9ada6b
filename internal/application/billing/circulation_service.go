package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cflow/backend/internal/domain/billing"
	"github.com/cflow/backend/internal/domain/shared"
	"github.com/cflow/backend/internal/domain/shared/valueobject"
)

// CirculationCache stores computed circulation costs per building and month
// so concurrent invoice runs for one building share a single calculation
type CirculationCache interface {
	Get(ctx context.Context, buildingID uuid.UUID, month time.Time) (valueobject.Money, bool, error)
	Set(ctx context.Context, buildingID uuid.UUID, month time.Time, cost valueobject.Money) error
	ClearBuilding(ctx context.Context, buildingID uuid.UUID) error
	Clear(ctx context.Context) error
}

// CirculationSettings parameterizes the hot-water circulation ("gyvatukas")
// calculation. All values come from configuration; the defaults reflect
// common district-heating practice.
type CirculationSettings struct {
	// SummerMonths are the months circulation energy is measured directly,
	// heating being off. Must be contiguous within one calendar year.
	SummerMonths []time.Month

	// WaterSpecificHeat is the energy to heat one m3 of water by one degree C, in kWh
	WaterSpecificHeat decimal.Decimal

	// TemperatureDelta is the assumed cold-to-hot temperature rise in degrees C
	TemperatureDelta decimal.Decimal

	// Winter months scale the stored summer baseline
	PeakMonths         []time.Month
	ShoulderMonths     []time.Month
	PeakAdjustment     decimal.Decimal
	ShoulderAdjustment decimal.Decimal
	DefaultAdjustment  decimal.Decimal

	// AverageValidityMonths bounds how old a stored summer baseline may be
	// before winter calculations recompute it
	AverageValidityMonths int
}

// DefaultCirculationSettings returns the standard parameter set
func DefaultCirculationSettings() CirculationSettings {
	return CirculationSettings{
		SummerMonths:          []time.Month{time.May, time.June, time.July, time.August, time.September},
		WaterSpecificHeat:     decimal.NewFromFloat(1.163),
		TemperatureDelta:      decimal.NewFromInt(45),
		PeakMonths:            []time.Month{time.December, time.January, time.February},
		ShoulderMonths:        []time.Month{time.October, time.November, time.March, time.April},
		PeakAdjustment:        decimal.NewFromFloat(1.3),
		ShoulderAdjustment:    decimal.NewFromFloat(1.15),
		DefaultAdjustment:     decimal.NewFromFloat(1.2),
		AverageValidityMonths: 12,
	}
}

// CirculationService computes building-level hot-water circulation costs and
// distributes them across the building's properties.
//
// Summer months measure circulation directly: the building's heating energy
// minus the energy spent heating the consumed hot water,
// Q_circ = max(0, Q_heat - V_hot * c * dT). Winter months take the stored
// summer baseline scaled by a seasonal adjustment factor.
type CirculationService struct {
	buildings billing.BuildingRepository
	readings  billing.MeterReadingRepository
	providers billing.ProviderRepository
	tariffs   billing.TariffRepository
	cache     CirculationCache
	settings  CirculationSettings
	logger    *zap.Logger
	now       func() time.Time
}

// NewCirculationService creates a CirculationService
func NewCirculationService(
	buildings billing.BuildingRepository,
	readings billing.MeterReadingRepository,
	providers billing.ProviderRepository,
	tariffs billing.TariffRepository,
	cache CirculationCache,
	settings CirculationSettings,
	logger *zap.Logger,
) *CirculationService {
	return &CirculationService{
		buildings: buildings,
		readings:  readings,
		providers: providers,
		tariffs:   tariffs,
		cache:     cache,
		settings:  settings,
		logger:    logger,
		now:       time.Now,
	}
}

// Calculate returns the building's circulation cost for the given month.
// Results are cached per (building, month); a cache hit answers without
// touching storage.
func (s *CirculationService) Calculate(ctx context.Context, buildingID uuid.UUID, month time.Time) (valueobject.Money, error) {
	monthStart := monthOf(month)

	cached, ok, err := s.cache.Get(ctx, buildingID, monthStart)
	if err != nil {
		s.logger.Warn("circulation cache read failed",
			zap.String("building_id", buildingID.String()),
			zap.Error(err))
	} else if ok {
		return cached, nil
	}

	building, err := s.buildings.FindByID(ctx, buildingID)
	if err != nil {
		return valueobject.Money{}, err
	}

	var energy decimal.Decimal
	if s.isSummerMonth(monthStart.Month()) {
		energy, err = s.circulationEnergy(ctx, buildingID, monthStart, endOfMonth(monthStart))
	} else {
		energy, err = s.winterEnergy(ctx, building, monthStart)
	}
	if err != nil {
		return valueobject.Money{}, err
	}

	rate, err := s.heatingRate(ctx, building.TenantID, endOfMonth(monthStart))
	if err != nil {
		return valueobject.Money{}, err
	}

	cost := valueobject.NewMoneyEUR(energy.Mul(rate)).RoundToCurrency()

	if err := s.cache.Set(ctx, buildingID, monthStart, cost); err != nil {
		s.logger.Warn("circulation cache write failed",
			zap.String("building_id", buildingID.String()),
			zap.Error(err))
	}

	s.logger.Debug("circulation cost calculated",
		zap.String("building_id", buildingID.String()),
		zap.String("month", monthStart.Format("2006-01")),
		zap.String("energy_kwh", energy.StringFixed(2)),
		zap.String("cost", cost.String()))

	return cost, nil
}

// Distribute splits the building's circulation cost for the month across its
// properties. Shares always reconcile exactly to the total: the rounding
// remainder is absorbed by the first property ordered by ID.
func (s *CirculationService) Distribute(ctx context.Context, buildingID uuid.UUID, month time.Time, method billing.DistributionMethod) (map[uuid.UUID]valueobject.Money, error) {
	cost, err := s.Calculate(ctx, buildingID, month)
	if err != nil {
		return nil, err
	}

	properties, err := s.buildings.PropertiesForDistribution(ctx, buildingID)
	if err != nil {
		return nil, err
	}
	if len(properties) == 0 {
		return nil, shared.NewDomainError("EMPTY_BUILDING", "Building has no properties to distribute to")
	}

	var shares []valueobject.Money
	switch method {
	case billing.DistributionEqual:
		shares, err = cost.Allocate(len(properties))
	case billing.DistributionArea:
		weights := make([]decimal.Decimal, len(properties))
		for i := range properties {
			weights[i] = properties[i].AreaSqm
		}
		shares, err = cost.AllocateByWeights(weights)
	default:
		return nil, shared.NewDomainError("INVALID_DISTRIBUTION", fmt.Sprintf("Unknown distribution method: %q", method))
	}
	if err != nil {
		return nil, err
	}

	result := make(map[uuid.UUID]valueobject.Money, len(properties))
	for i := range properties {
		result[properties[i].ID] = shares[i]
	}
	return result, nil
}

// ShareForProperty returns one property's slice of the building's
// circulation cost for the month
func (s *CirculationService) ShareForProperty(ctx context.Context, buildingID, propertyID uuid.UUID, month time.Time, method billing.DistributionMethod) (valueobject.Money, error) {
	shares, err := s.Distribute(ctx, buildingID, month, method)
	if err != nil {
		return valueobject.Money{}, err
	}
	share, ok := shares[propertyID]
	if !ok {
		return valueobject.Money{}, shared.NewDomainError("PROPERTY_NOT_IN_BUILDING", fmt.Sprintf("Property %s is not part of building %s", propertyID, buildingID))
	}
	return share, nil
}

// ClearCache drops every cached circulation cost
func (s *CirculationService) ClearCache(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

// ClearBuildingCache drops the cached costs of one building, for use after
// its readings or tariffs are corrected
func (s *CirculationService) ClearBuildingCache(ctx context.Context, buildingID uuid.UUID) error {
	return s.cache.ClearBuilding(ctx, buildingID)
}

// circulationEnergy measures Q_circ over [from, to] from the building's
// heating and hot-water meters, two batched reading queries in total
func (s *CirculationService) circulationEnergy(ctx context.Context, buildingID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	heatReadings, err := s.readings.BatchForBuildingByType(ctx, buildingID, billing.MeterTypeHeating, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	hotWaterReadings, err := s.readings.BatchForBuildingByType(ctx, buildingID, billing.MeterTypeWaterHot, from, to)
	if err != nil {
		return decimal.Zero, err
	}

	qHeat := totalConsumption(heatReadings)
	vHot := totalConsumption(hotWaterReadings)

	waterHeating := vHot.Mul(s.settings.WaterSpecificHeat).Mul(s.settings.TemperatureDelta)
	qCirc := qHeat.Sub(waterHeating)
	if qCirc.IsNegative() {
		return decimal.Zero, nil
	}
	return qCirc, nil
}

// winterEnergy scales the stored summer baseline by the month's seasonal
// factor, recomputing and persisting the baseline when missing or stale
func (s *CirculationService) winterEnergy(ctx context.Context, building *billing.Building, monthStart time.Time) (decimal.Decimal, error) {
	baseline, err := s.summerBaseline(ctx, building, monthStart)
	if err != nil {
		return decimal.Zero, err
	}
	return baseline.Mul(s.winterAdjustment(monthStart.Month())), nil
}

func (s *CirculationService) summerBaseline(ctx context.Context, building *billing.Building, monthStart time.Time) (decimal.Decimal, error) {
	if building.CirculationSummerAverage != nil && building.CirculationCalculatedAt != nil {
		staleAfter := building.CirculationCalculatedAt.AddDate(0, s.settings.AverageValidityMonths, 0)
		if s.now().Before(staleAfter) {
			return *building.CirculationSummerAverage, nil
		}
	}

	from, to := s.precedingSummerSpan(monthStart)
	total, err := s.circulationEnergy(ctx, building.ID, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	average := total.Div(decimal.NewFromInt(int64(len(s.settings.SummerMonths))))

	if err := s.buildings.UpdateCirculationAverage(ctx, building.ID, average, s.now()); err != nil {
		return decimal.Zero, err
	}

	s.logger.Info("circulation summer baseline recomputed",
		zap.String("building_id", building.ID.String()),
		zap.String("average_kwh", average.StringFixed(2)))

	return average, nil
}

// precedingSummerSpan returns the most recent completed summer window before
// the given winter month
func (s *CirculationService) precedingSummerSpan(monthStart time.Time) (time.Time, time.Time) {
	first := s.settings.SummerMonths[0]
	last := s.settings.SummerMonths[len(s.settings.SummerMonths)-1]

	year := monthStart.Year()
	if monthStart.Month() < first {
		year--
	}

	from := time.Date(year, first, 1, 0, 0, 0, 0, time.UTC)
	to := endOfMonth(time.Date(year, last, 1, 0, 0, 0, 0, time.UTC))
	return from, to
}

func (s *CirculationService) isSummerMonth(m time.Month) bool {
	for _, sm := range s.settings.SummerMonths {
		if sm == m {
			return true
		}
	}
	return false
}

func (s *CirculationService) winterAdjustment(m time.Month) decimal.Decimal {
	for _, pm := range s.settings.PeakMonths {
		if pm == m {
			return s.settings.PeakAdjustment
		}
	}
	for _, sm := range s.settings.ShoulderMonths {
		if sm == m {
			return s.settings.ShoulderAdjustment
		}
	}
	return s.settings.DefaultAdjustment
}

// heatingRate resolves the tenant's heating tariff rate per kWh active at
// the end of the billed month
func (s *CirculationService) heatingRate(ctx context.Context, tenantID uuid.UUID, onDate time.Time) (decimal.Decimal, error) {
	provider, err := s.providers.FindByServiceType(ctx, tenantID, billing.ServiceTypeHeating)
	if err != nil {
		return decimal.Zero, err
	}
	tariff, err := billing.NewTariffResolver(s.tariffs).Resolve(ctx, provider.ID, billing.ServiceTypeHeating, onDate)
	if err != nil {
		return decimal.Zero, err
	}
	return tariff.RatePerUnit("")
}

// totalConsumption sums per-meter deltas from a date-ordered reading batch.
// Each (meter, zone) contributes last value minus first value; a negative
// per-meter delta is treated as a rollover and skipped.
func totalConsumption(readings []billing.MeterReading) decimal.Decimal {
	type key struct {
		meterID uuid.UUID
		zone    string
	}
	first := make(map[key]decimal.Decimal)
	last := make(map[key]decimal.Decimal)
	var order []key

	for _, r := range readings {
		k := key{meterID: r.MeterID, zone: r.Zone}
		if _, seen := first[k]; !seen {
			first[k] = r.Value
			order = append(order, k)
		}
		last[k] = r.Value
	}

	total := decimal.Zero
	for _, k := range order {
		delta := last[k].Sub(first[k])
		if delta.IsNegative() {
			continue
		}
		total = total.Add(delta)
	}
	return total
}

// monthOf normalizes any timestamp to the first day of its month in UTC
func monthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// endOfMonth returns the last day of the month containing t
func endOfMonth(t time.Time) time.Time {
	return monthOf(t).AddDate(0, 1, -1)
}
