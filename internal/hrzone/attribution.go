package hrzone

import (
	"context"
	"log"
	"sort"

	"github.com/google/uuid"

	"example.com/hrzones/internal/domain"
)

// ZoneSource supplies the zone entries belonging to a configuration. The
// postgres repository satisfies it; tests inject fakes.
type ZoneSource interface {
	ZonesForConfig(ctx context.Context, configID uuid.UUID) ([]domain.HeartRateZone, error)
}

// Calculator attributes heart-rate values to zones and accumulates per-zone
// time for activities. It reads zone entries through the injected source and
// mutates nothing; concurrent use is safe.
type Calculator struct {
	zones  ZoneSource
	logger *log.Logger
}

// Option configures optional behaviour for the Calculator.
type Option func(*Calculator)

// WithLogger overrides the logger used for diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(c *Calculator) {
		c.logger = logger
	}
}

// NewCalculator constructs a Calculator over the given zone source.
func NewCalculator(zones ZoneSource, opts ...Option) *Calculator {
	c := &Calculator{
		zones:  zones,
		logger: log.New(log.Writer(), "[hrzone] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DetermineZone resolves the zone name for a heart-rate value, or ok=false
// when the value falls outside every defined zone. Candidates are scanned in
// ascending MinHR order and the first whose inclusive [MinHR, MaxHR] range
// contains the value wins. A missing configuration, a failed zone fetch, or
// an empty zone set all degrade to "no zone" rather than an error.
func (c *Calculator) DetermineZone(ctx context.Context, hrValue int, cfg *domain.ZonesConfig) (string, bool) {
	if cfg == nil {
		c.logger.Printf("warning: DetermineZone called without a zones config")
		return "", false
	}

	zones, err := c.zones.ZonesForConfig(ctx, cfg.ID)
	if err != nil {
		c.logger.Printf("error: reading zones for user %d, category %s: %v", cfg.UserID, cfg.Category, err)
		return "", false
	}
	if len(zones) == 0 {
		c.logger.Printf("warning: no heart rate zones defined for user %d, category %s", cfg.UserID, cfg.Category)
		return "", false
	}

	return matchZone(hrValue, sortedByMinHR(zones))
}

// sortedByMinHR returns a copy sorted ascending by MinHR. The sort is stable
// so rows with equal MinHR keep their repository order.
func sortedByMinHR(zones []domain.HeartRateZone) []domain.HeartRateZone {
	sorted := make([]domain.HeartRateZone, len(zones))
	copy(sorted, zones)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinHR < sorted[j].MinHR
	})
	return sorted
}

// matchZone scans zones already sorted by MinHR, skipping malformed entries.
func matchZone(hrValue int, sorted []domain.HeartRateZone) (string, bool) {
	for _, zone := range sorted {
		if !zone.WellFormed() {
			continue
		}
		if zone.MinHR <= hrValue && hrValue <= zone.MaxHR {
			return zone.Name, true
		}
	}
	return "", false
}
