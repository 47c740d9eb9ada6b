package billing

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultReadingBufferDays tolerates readings entered slightly outside the
// exact period edges
const DefaultReadingBufferDays = 7

// ReadingWindow is the pair of readings bracketing a billing period for one
// meter and zone
type ReadingWindow struct {
	AtOrBefore *MeterReading // latest reading at or before the period start
	AtOrAfter  *MeterReading // earliest reading at or after the period end
}

// ReadingResolver answers reading-window queries for one property's billing
// run entirely in memory. It is constructed from the single batched query
// the orchestrator issues for all of the property's meters, so resolving a
// window never touches storage.
type ReadingResolver struct {
	byMeter    map[uuid.UUID][]MeterReading // sorted ascending by date
	bufferDays int
}

// NewReadingResolver indexes a batch of readings by meter. Readings are
// sorted per meter by date; the input order does not matter.
func NewReadingResolver(readings []MeterReading, bufferDays int) *ReadingResolver {
	if bufferDays <= 0 {
		bufferDays = DefaultReadingBufferDays
	}
	byMeter := make(map[uuid.UUID][]MeterReading)
	for _, r := range readings {
		byMeter[r.MeterID] = append(byMeter[r.MeterID], r)
	}
	for id := range byMeter {
		rs := byMeter[id]
		sort.Slice(rs, func(i, j int) bool {
			return rs[i].ReadingDate.Before(rs[j].ReadingDate)
		})
		byMeter[id] = rs
	}
	return &ReadingResolver{byMeter: byMeter, bufferDays: bufferDays}
}

// Window resolves the reading pair for one meter and zone across the
// billing period. The start bound accepts readings up to bufferDays before
// the period start; the end bound accepts readings up to bufferDays after
// the period end. A bound that does not resolve within its buffer yields a
// MissingReadingError naming the meter, zone and target date.
func (r *ReadingResolver) Window(meterID uuid.UUID, zone string, periodStart, periodEnd time.Time) (ReadingWindow, error) {
	readings := r.byMeter[meterID]

	before := r.atOrBefore(readings, zone, periodStart)
	if before == nil {
		return ReadingWindow{}, NewMissingReadingError(meterID, zone, periodStart)
	}

	after := r.atOrAfter(readings, zone, periodEnd)
	if after == nil {
		return ReadingWindow{}, NewMissingReadingError(meterID, zone, periodEnd)
	}

	return ReadingWindow{AtOrBefore: before, AtOrAfter: after}, nil
}

// Zones returns the distinct zones observed for a meter within the buffered
// period, sorted for deterministic iteration. The scan covers the same
// bufferDays margin Window accepts, so a zone whose readings all sit just
// outside the exact edges is still enumerated and billed.
func (r *ReadingResolver) Zones(meterID uuid.UUID, periodStart, periodEnd time.Time) []string {
	windowStart := periodStart.AddDate(0, 0, -r.bufferDays)
	windowEnd := periodEnd.AddDate(0, 0, r.bufferDays)
	seen := make(map[string]struct{})
	for _, reading := range r.byMeter[meterID] {
		if reading.Zone == "" {
			continue
		}
		if reading.ReadingDate.Before(windowStart) || reading.ReadingDate.After(windowEnd) {
			continue
		}
		seen[reading.Zone] = struct{}{}
	}
	zones := make([]string, 0, len(seen))
	for z := range seen {
		zones = append(zones, z)
	}
	sort.Strings(zones)
	return zones
}

// atOrBefore finds the latest reading with date <= target, no older than the
// buffer window
func (r *ReadingResolver) atOrBefore(readings []MeterReading, zone string, target time.Time) *MeterReading {
	earliest := target.AddDate(0, 0, -r.bufferDays)
	var found *MeterReading
	for i := range readings {
		reading := &readings[i]
		if reading.Zone != zone {
			continue
		}
		if reading.ReadingDate.After(target) {
			break
		}
		if reading.ReadingDate.Before(earliest) {
			continue
		}
		found = reading
	}
	return found
}

// atOrAfter finds the earliest reading with date >= target, no newer than
// the buffer window
func (r *ReadingResolver) atOrAfter(readings []MeterReading, zone string, target time.Time) *MeterReading {
	latest := target.AddDate(0, 0, r.bufferDays)
	for i := range readings {
		reading := &readings[i]
		if reading.Zone != zone {
			continue
		}
		if reading.ReadingDate.Before(target) {
			continue
		}
		if reading.ReadingDate.After(latest) {
			return nil
		}
		return reading
	}
	return nil
}
