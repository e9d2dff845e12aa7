package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWeeksInMonth(t *testing.T) {
	cases := []struct {
		year  int
		month time.Month
		want  []int
	}{
		// January 2024 starts mid ISO week 1 (2024-01-01 is a Monday).
		{2024, time.January, []int{1, 2, 3, 4, 5}},
		// February 2024 spans ISO weeks 5-9.
		{2024, time.February, []int{5, 6, 7, 8, 9}},
		// January 2023 begins on a Sunday that belongs to ISO week 52 of
		// 2022; that week is excluded because its ISO year differs.
		{2023, time.January, []int{1, 2, 3, 4, 5}},
		// December 2024 ends on a Tuesday inside ISO week 1 of 2025,
		// which must not leak into 2024's weekly summaries.
		{2024, time.December, []int{48, 49, 50, 51, 52}},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, WeeksInMonth(tc.year, tc.month), "%d-%s", tc.year, tc.month)
	}
}

func TestCategoryForActivityType(t *testing.T) {
	require.Equal(t, CategoryRun, CategoryForActivityType("Run"))
	require.Equal(t, CategoryRun, CategoryForActivityType("TrailRun"))
	require.Equal(t, CategoryRide, CategoryForActivityType("VirtualRide"))
	require.Equal(t, CategoryRide, CategoryForActivityType("EBikeRide"))
	require.Equal(t, CategoryDefault, CategoryForActivityType("Swim"))
	require.Equal(t, CategoryDefault, CategoryForActivityType(""))
}

func TestHeartRateZoneValidate(t *testing.T) {
	require.NoError(t, HeartRateZone{Name: "Z1", MinHR: 0, MaxHR: 100}.Validate())
	require.ErrorIs(t, HeartRateZone{Name: "Z1", MinHR: 150, MaxHR: 140}.Validate(), ErrInvalidZoneBounds)
	require.ErrorIs(t, HeartRateZone{Name: "Z1", MinHR: -1, MaxHR: 100}.Validate(), ErrInvalidZoneBounds)
	require.ErrorIs(t, HeartRateZone{Name: "Z1", MinHR: 0, MaxHR: -5}.Validate(), ErrInvalidZoneBounds)
}
