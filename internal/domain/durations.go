package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ZoneDuration pairs a zone name with accumulated seconds.
type ZoneDuration struct {
	Name    string
	Seconds int
}

// ZoneDurations is an ordered zone-name -> seconds mapping. Order carries
// meaning (default-config zone order, then name), so it marshals to a JSON
// object with keys in slice order rather than a Go map.
type ZoneDurations []ZoneDuration

// MarshalJSON renders the mapping as an object preserving entry order.
func (d ZoneDurations) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		fmt.Fprintf(&buf, "%d", entry.Seconds)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, preserving the key order of the document.
func (d *ZoneDurations) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("zone durations: expected object, got %v", tok)
	}

	out := ZoneDurations{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("zone durations: unexpected key %v", keyTok)
		}
		var seconds int
		if err := dec.Decode(&seconds); err != nil {
			return fmt.Errorf("zone durations: value for %q: %w", key, err)
		}
		out = append(out, ZoneDuration{Name: key, Seconds: seconds})
	}
	*d = out
	return nil
}

// Equal compares two mappings entry by entry, order included.
func (d ZoneDurations) Equal(other ZoneDurations) bool {
	if len(d) != len(other) {
		return false
	}
	for i := range d {
		if d[i] != other[i] {
			return false
		}
	}
	return true
}

// SecondsFor returns the accumulated seconds for a zone name, or 0 when absent.
func (d ZoneDurations) SecondsFor(name string) int {
	for _, entry := range d {
		if entry.Name == name {
			return entry.Seconds
		}
	}
	return 0
}
