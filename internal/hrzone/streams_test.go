package hrzone

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseActivityStreamsFullPayload(t *testing.T) {
	raw := `{
		"time": {"data": [0, 10, 20], "series_type": "time"},
		"heartrate": {"data": [90, 110, 130]},
		"distance": {"data": [0.0, 5.5, 11.2]},
		"moving": {"data": [false, true, true]}
	}`
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	streams := ParseActivityStreams(payload)

	require.Equal(t, []int{0, 10, 20}, streams.Time)
	require.Equal(t, []int{90, 110, 130}, streams.HeartRate)
	require.Equal(t, []float64{0.0, 5.5, 11.2}, streams.Distance)
	require.Equal(t, []bool{false, true, true}, streams.Moving)
}

func TestParseActivityStreamsNilPayload(t *testing.T) {
	streams := ParseActivityStreams(nil)

	require.Nil(t, streams.Time)
	require.Nil(t, streams.HeartRate)
	require.Nil(t, streams.Distance)
	require.Nil(t, streams.Moving)
}

func TestParseActivityStreamsMalformedStreams(t *testing.T) {
	cases := []struct {
		name    string
		payload map[string]any
	}{
		{
			name:    "stream value not an object",
			payload: map[string]any{"time": "garbage"},
		},
		{
			name:    "data not an array",
			payload: map[string]any{"time": map[string]any{"data": "garbage"}},
		},
		{
			name:    "empty data array",
			payload: map[string]any{"time": map[string]any{"data": []any{}}},
		},
		{
			name:    "non-integer elements",
			payload: map[string]any{"time": map[string]any{"data": []any{0.0, 1.5, 3.0}}},
		},
		{
			name:    "wrong element type",
			payload: map[string]any{"time": map[string]any{"data": []any{"a", "b"}}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			streams := ParseActivityStreams(tc.payload)
			require.Nil(t, streams.Time)
		})
	}
}

func TestParseActivityStreamsIndependentFailures(t *testing.T) {
	// A broken time stream must not prevent heartrate from parsing.
	payload := map[string]any{
		"time":      map[string]any{"data": []any{}},
		"heartrate": map[string]any{"data": []any{100.0, 120.0}},
		"moving":    map[string]any{"data": []any{true, 1.0}},
	}

	streams := ParseActivityStreams(payload)

	require.Nil(t, streams.Time)
	require.Equal(t, []int{100, 120}, streams.HeartRate)
	require.Nil(t, streams.Distance)
	require.Nil(t, streams.Moving, "mixed-type moving stream must resolve to nil")
}

func TestParseActivityStreamsDistanceAcceptsIntegers(t *testing.T) {
	payload := map[string]any{
		"distance": map[string]any{"data": []any{0.0, 3.0, 7.5}},
	}

	streams := ParseActivityStreams(payload)

	require.Equal(t, []float64{0, 3, 7.5}, streams.Distance)
}
