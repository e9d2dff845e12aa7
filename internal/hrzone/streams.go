// Package hrzone implements the heart-rate zone computation core: parsing raw
// activity streams, attributing heart-rate values to configured zones, and
// accumulating time spent per zone for a single activity.
package hrzone

import (
	"log"
	"math"
)

var streamLogger = log.New(log.Writer(), "[hrzone] ", log.LstdFlags)

// Streams holds the typed series parsed out of a raw activity stream payload.
// Each series is independently nil when missing or malformed. Time and
// HeartRate are required downstream; Distance and Moving only enable the
// moving filter.
type Streams struct {
	Time      []int
	HeartRate []int
	Distance  []float64
	Moving    []bool
}

// ParseActivityStreams extracts the time, heartrate, distance and moving
// series from a raw stream payload keyed by stream type. Malformed input is
// never an error: any stream that is missing, has the wrong shape, is empty,
// or contains values of the wrong type resolves to nil with a diagnostic log
// line, independently of the other streams.
func ParseActivityStreams(payload map[string]any) Streams {
	if len(payload) == 0 {
		streamLogger.Printf("warning: no stream data provided to parse")
		return Streams{}
	}

	return Streams{
		Time:      parseIntStream(payload, "time"),
		HeartRate: parseIntStream(payload, "heartrate"),
		Distance:  parseFloatStream(payload, "distance"),
		Moving:    parseBoolStream(payload, "moving"),
	}
}

func streamData(payload map[string]any, streamType string) []any {
	stream, ok := payload[streamType].(map[string]any)
	if !ok {
		streamLogger.Printf("warning: %s stream not found or not an object", streamType)
		return nil
	}
	data, ok := stream["data"].([]any)
	if !ok {
		streamLogger.Printf("warning: %s stream data is not an array", streamType)
		return nil
	}
	if len(data) == 0 {
		streamLogger.Printf("warning: %s stream data array is empty", streamType)
		return nil
	}
	return data
}

func parseIntStream(payload map[string]any, streamType string) []int {
	data := streamData(payload, streamType)
	if data == nil {
		return nil
	}
	out := make([]int, len(data))
	for i, raw := range data {
		value, ok := asInt(raw)
		if !ok {
			streamLogger.Printf("warning: %s stream contains non-integer values", streamType)
			return nil
		}
		out[i] = value
	}
	return out
}

func parseFloatStream(payload map[string]any, streamType string) []float64 {
	data := streamData(payload, streamType)
	if data == nil {
		return nil
	}
	out := make([]float64, len(data))
	for i, raw := range data {
		value, ok := asFloat(raw)
		if !ok {
			streamLogger.Printf("warning: %s stream contains non-numeric values", streamType)
			return nil
		}
		out[i] = value
	}
	return out
}

func parseBoolStream(payload map[string]any, streamType string) []bool {
	data := streamData(payload, streamType)
	if data == nil {
		return nil
	}
	out := make([]bool, len(data))
	for i, raw := range data {
		value, ok := raw.(bool)
		if !ok {
			streamLogger.Printf("warning: %s stream contains non-boolean values", streamType)
			return nil
		}
		out[i] = value
	}
	return out
}

// asInt accepts native ints and the integral float64 values JSON decoding produces.
func asInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int(v), true
		}
	}
	return 0, false
}

func asFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
