package hrzone

import (
	"context"
	"math"

	"example.com/hrzones/internal/domain"
)

// OutsideZonesKey is the sentinel bucket for time whose heart rate matched no
// defined zone.
const OutsideZonesKey = "Time Outside Defined Zones"

// movingThreshold is the minimum per-interval displacement, in meters, for an
// interval to count as moving when its explicit moving flag is false. The
// values approximate Strava's own moving-time heuristics per category.
func movingThreshold(category domain.ActivityCategory) float64 {
	switch category {
	case domain.CategoryRide:
		return 3.0
	case domain.CategoryRun:
		return 2.0
	default:
		return 0.8
	}
}

// TimeInZones computes seconds spent in each configured zone for one activity.
//
// The result always contains OutsideZonesKey, and when the configuration's
// zones load successfully every zone name is seeded at 0 so zones without
// observed time still appear. Missing or mismatched time/heartrate series and
// series shorter than two samples return the seeded mapping unchanged.
//
// Each adjacent sample pair forms one interval. Intervals with non-positive
// duration (duplicate or out-of-order timestamps) are dropped. When both the
// moving and distance series are present, an interval counts only if its
// moving flag is set or its displacement exceeds the category threshold.
// The interval's heart rate is the rounded midpoint of its two samples
// (math.Round, halves away from zero) and its duration is attributed to the
// first matching zone in ascending MinHR order, or to the outside bucket.
func (c *Calculator) TimeInZones(ctx context.Context, s Streams, cfg *domain.ZonesConfig) map[string]int {
	result := map[string]int{OutsideZonesKey: 0}
	category := domain.CategoryDefault

	var zones []domain.HeartRateZone
	if cfg == nil {
		c.logger.Printf("warning: TimeInZones called without a zones config; all time will be outside zones")
	} else {
		category = cfg.Category
		fetched, err := c.zones.ZonesForConfig(ctx, cfg.ID)
		if err != nil {
			c.logger.Printf("error: reading zone definitions for config %s: %v; proceeding as if no zones were defined", cfg.ID, err)
			result = map[string]int{OutsideZonesKey: 0}
		} else {
			zones = fetched
			for _, zone := range zones {
				result[zone.Name] = 0
			}
		}
	}

	if len(s.Time) == 0 || len(s.HeartRate) == 0 {
		c.logger.Printf("warning: time or heartrate data missing, cannot calculate time in zones")
		return result
	}
	if len(s.Time) != len(s.HeartRate) {
		c.logger.Printf("warning: time and heartrate series have different lengths (%d vs %d)", len(s.Time), len(s.HeartRate))
		return result
	}
	if len(s.Time) < 2 {
		c.logger.Printf("insufficient data points (need at least 2) to calculate time in zones")
		return result
	}

	threshold := movingThreshold(category)
	sorted := sortedByMinHR(zones)

	for i := 1; i < len(s.HeartRate); i++ {
		if !isMovingInterval(s.Moving, s.Distance, threshold, i) {
			continue
		}

		duration := s.Time[i] - s.Time[i-1]
		if duration <= 0 {
			continue
		}

		heartRate := int(math.Round(float64(s.HeartRate[i]+s.HeartRate[i-1]) / 2))
		if name, ok := matchZone(heartRate, sorted); ok {
			result[name] += duration
		} else {
			result[OutsideZonesKey] += duration
		}
	}

	return result
}

// isMovingInterval applies the moving filter to the interval ending at idx.
// Without both series the filter cannot run and every interval counts.
func isMovingInterval(moving []bool, distance []float64, threshold float64, idx int) bool {
	if len(moving) == 0 || len(distance) == 0 {
		return true
	}
	if idx >= len(moving) || idx >= len(distance) {
		return true
	}
	return moving[idx] || distance[idx]-distance[idx-1] > threshold
}
