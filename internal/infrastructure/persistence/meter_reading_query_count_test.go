package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cflow/backend/internal/domain/billing"
)

// SQLite-compatible row types for the tables the reading queries touch.

type propertyRowSQLite struct {
	ID         string `gorm:"primaryKey"`
	BuildingID string `gorm:"not null"`
}

func (propertyRowSQLite) TableName() string {
	return "properties"
}

type meterRowSQLite struct {
	ID         string `gorm:"primaryKey"`
	PropertyID string `gorm:"not null"`
	Type       string `gorm:"not null"`
}

func (meterRowSQLite) TableName() string {
	return "meters"
}

type meterReadingRowSQLite struct {
	ID               string    `gorm:"primaryKey"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
	MeterID          string    `gorm:"not null"`
	ReadingDate      time.Time `gorm:"not null"`
	Value            string    `gorm:"not null"`
	Zone             string    `gorm:"not null;default:''"`
	ValidationStatus string    `gorm:"not null;default:'pending'"`
}

func (meterReadingRowSQLite) TableName() string {
	return "meter_readings"
}

func setupReadingQueryTestDB(t *testing.T) (*gorm.DB, *QueryCounter) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&propertyRowSQLite{}, &meterRowSQLite{}, &meterReadingRowSQLite{})
	require.NoError(t, err)

	counter := NewQueryCounter()
	require.NoError(t, db.Use(counter))

	return db, counter
}

func seedReading(t *testing.T, db *gorm.DB, meterID uuid.UUID, date time.Time, value string) {
	t.Helper()
	now := time.Now()
	err := db.Create(&meterReadingRowSQLite{
		ID:               uuid.NewString(),
		CreatedAt:        now,
		UpdatedAt:        now,
		MeterID:          meterID.String(),
		ReadingDate:      date,
		Value:            value,
		ValidationStatus: "validated",
	}).Error
	require.NoError(t, err)
}

func TestMeterReadingRepository_BatchForMetersInWindow_SingleQuery(t *testing.T) {
	db, counter := setupReadingQueryTestDB(t)
	repo := NewGormMeterReadingRepository(db)
	ctx := context.Background()

	periodStart := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	meterIDs := make([]uuid.UUID, 10)
	for i := range meterIDs {
		meterIDs[i] = uuid.New()
		seedReading(t, db, meterIDs[i], periodStart, "100.0000")
		seedReading(t, db, meterIDs[i], periodEnd, "130.0000")
	}
	// Inside the 7-day buffer on both sides
	seedReading(t, db, meterIDs[0], periodStart.AddDate(0, 0, -7), "95.0000")
	seedReading(t, db, meterIDs[0], periodEnd.AddDate(0, 0, 7), "133.0000")
	// Just outside the buffer
	seedReading(t, db, meterIDs[0], periodStart.AddDate(0, 0, -8), "90.0000")
	seedReading(t, db, meterIDs[0], periodEnd.AddDate(0, 0, 8), "140.0000")

	counter.Reset()
	readings, err := repo.BatchForMetersInWindow(ctx, meterIDs, periodStart, periodEnd, billing.DefaultReadingBufferDays)
	require.NoError(t, err)

	assert.Equal(t, int64(1), counter.Count(), "fetch stays one query regardless of meter count")
	assert.Len(t, readings, 22)
	for i := 1; i < len(readings); i++ {
		assert.False(t, readings[i].ReadingDate.Before(readings[i-1].ReadingDate))
	}

	t.Run("empty meter set hits no query", func(t *testing.T) {
		counter.Reset()
		readings, err := repo.BatchForMetersInWindow(ctx, nil, periodStart, periodEnd, billing.DefaultReadingBufferDays)
		require.NoError(t, err)
		assert.Empty(t, readings)
		assert.Equal(t, int64(0), counter.Count())
	})
}

func TestMeterReadingRepository_BatchForBuildingByType_SingleQuery(t *testing.T) {
	db, counter := setupReadingQueryTestDB(t)
	repo := NewGormMeterReadingRepository(db)
	ctx := context.Background()

	buildingID := uuid.New()
	otherBuildingID := uuid.New()
	periodStart := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC)

	addMeter := func(building uuid.UUID, meterType billing.MeterType) uuid.UUID {
		propertyID := uuid.New()
		require.NoError(t, db.Create(&propertyRowSQLite{
			ID:         propertyID.String(),
			BuildingID: building.String(),
		}).Error)
		meterID := uuid.New()
		require.NoError(t, db.Create(&meterRowSQLite{
			ID:         meterID.String(),
			PropertyID: propertyID.String(),
			Type:       string(meterType),
		}).Error)
		return meterID
	}

	heatingA := addMeter(buildingID, billing.MeterTypeHeating)
	heatingB := addMeter(buildingID, billing.MeterTypeHeating)
	coldWater := addMeter(buildingID, billing.MeterTypeWaterCold)
	foreignHeating := addMeter(otherBuildingID, billing.MeterTypeHeating)

	seedReading(t, db, heatingA, periodStart.AddDate(0, 0, 5), "12.5000")
	seedReading(t, db, heatingB, periodStart.AddDate(0, 0, 10), "8.0000")
	seedReading(t, db, coldWater, periodStart.AddDate(0, 0, 5), "3.0000")
	seedReading(t, db, foreignHeating, periodStart.AddDate(0, 0, 5), "99.0000")
	// Outside the period, no buffer applies to building fetches
	seedReading(t, db, heatingA, periodStart.AddDate(0, 0, -1), "11.0000")

	counter.Reset()
	readings, err := repo.BatchForBuildingByType(ctx, buildingID, billing.MeterTypeHeating, periodStart, periodEnd)
	require.NoError(t, err)

	assert.Equal(t, int64(1), counter.Count(), "meter lookup folds into a subquery")
	require.Len(t, readings, 2)
	got := map[uuid.UUID]string{}
	for _, r := range readings {
		got[r.MeterID] = r.Value.StringFixed(4)
	}
	assert.Equal(t, "12.5000", got[heatingA])
	assert.Equal(t, "8.0000", got[heatingB])
}
