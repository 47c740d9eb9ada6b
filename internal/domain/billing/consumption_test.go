package billing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeConsumption(t *testing.T) {
	meterID := uuid.New()

	t.Run("delta is end minus start", func(t *testing.T) {
		start := reading(meterID, "", date(2024, 6, 1), 1000)
		end := reading(meterID, "", date(2024, 6, 30), 1500)

		c, err := ComputeConsumption(ReadingWindow{AtOrBefore: &start, AtOrAfter: &end})

		require.NoError(t, err)
		assert.True(t, c.Delta.Equal(decimal.NewFromInt(500)))
		assert.False(t, c.Flagged)
	})

	t.Run("zone carries through from the readings", func(t *testing.T) {
		start := reading(meterID, "night", date(2024, 6, 1), 500)
		end := reading(meterID, "night", date(2024, 6, 30), 580)

		c, err := ComputeConsumption(ReadingWindow{AtOrBefore: &start, AtOrAfter: &end})

		require.NoError(t, err)
		assert.Equal(t, "night", c.Zone)
	})

	t.Run("identical readings mean zero consumption", func(t *testing.T) {
		start := reading(meterID, "", date(2024, 6, 1), 1000)
		end := reading(meterID, "", date(2024, 6, 30), 1000)

		c, err := ComputeConsumption(ReadingWindow{AtOrBefore: &start, AtOrAfter: &end})

		require.NoError(t, err)
		assert.True(t, c.IsZero())
	})

	t.Run("decreasing readings are rejected", func(t *testing.T) {
		start := reading(meterID, "", date(2024, 6, 1), 1500)
		end := reading(meterID, "", date(2024, 6, 30), 1000)

		_, err := ComputeConsumption(ReadingWindow{AtOrBefore: &start, AtOrAfter: &end})

		var negative *NegativeConsumptionError
		require.ErrorAs(t, err, &negative)
		assert.Equal(t, meterID, negative.MeterID)
		assert.True(t, negative.Delta.Equal(decimal.NewFromInt(-500)))
	})
}

func TestFlaggedZeroConsumption(t *testing.T) {
	c := FlaggedZeroConsumption("day")

	assert.True(t, c.Flagged)
	assert.True(t, c.IsZero())
	assert.Equal(t, "day", c.Zone)
}
