package mapper

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// rawTime accepts ISO-8601 timestamps with either a trailing Z/z or an
// explicit numeric offset, the same leniency original_source's
// domain_mapping.py's _parse_iso_datetime affords callers.
type rawTime struct {
	time.Time
}

func (r *rawTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a JSON string: %w", err)
	}
	t, err := parseISOTimestamp(s)
	if err != nil {
		return err
	}
	r.Time = t
	return nil
}

func (r rawTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Time.UTC().Format(time.RFC3339))
}

func parseISOTimestamp(s string) (time.Time, error) {
	normalized := s
	if strings.HasSuffix(normalized, "z") {
		normalized = normalized[:len(normalized)-1] + "Z"
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, normalized); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO-8601 timestamp %q", s)
}

// minutesBetween returns round((target-reference).Seconds()/60) using
// half-to-even (banker's) rounding, per spec.md 4.1's translation formulas.
// Offsets may be negative.
func minutesBetween(reference, target time.Time) int {
	seconds := target.Sub(reference).Seconds()
	minutes := seconds / 60
	return roundHalfToEven(minutes)
}

func roundHalfToEven(x float64) int {
	floor := int(x)
	if x < 0 && float64(floor) != x {
		floor--
	}
	frac := x - float64(floor)

	switch {
	case frac < 0.5:
		return floor
	case frac > 0.5:
		return floor + 1
	default:
		if floor%2 == 0 {
			return floor
		}
		return floor + 1
	}
}
