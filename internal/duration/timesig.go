package duration

import (
	"fmt"
	"strconv"
	"strings"
)

// TimeSignature is a numerator/denominator pair. Unlike Duration it is never
// reduced: 4/8 and 2/4 are different signatures.
type TimeSignature struct {
	Numerator   int
	Denominator int
}

// Sig is shorthand for TimeSignature{n, d}.
func Sig(n, d int) TimeSignature {
	return TimeSignature{Numerator: n, Denominator: d}
}

// Duration returns the measure length.
func (ts TimeSignature) Duration() Duration {
	return New(int64(ts.Numerator), int64(ts.Denominator))
}

func (ts TimeSignature) String() string {
	return fmt.Sprintf("%d/%d", ts.Numerator, ts.Denominator)
}

// Validate rejects non-positive parts and denominators that are not powers of two.
func (ts TimeSignature) Validate() error {
	if ts.Numerator <= 0 {
		return fmt.Errorf("time signature %s: numerator must be positive", ts)
	}
	if ts.Denominator <= 0 || ts.Denominator&(ts.Denominator-1) != 0 {
		return fmt.Errorf("time signature %s: denominator must be a positive power of two", ts)
	}
	return nil
}

// ParseTimeSignature reads "n/d".
func ParseTimeSignature(s string) (TimeSignature, error) {
	numText, denText, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return TimeSignature{}, fmt.Errorf("time signature: expected n/d, got %q", s)
	}
	num, err := strconv.Atoi(strings.TrimSpace(numText))
	if err != nil {
		return TimeSignature{}, fmt.Errorf("time signature %q: %w", s, err)
	}
	den, err := strconv.Atoi(strings.TrimSpace(denText))
	if err != nil {
		return TimeSignature{}, fmt.Errorf("time signature %q: %w", s, err)
	}
	ts := TimeSignature{Numerator: num, Denominator: den}
	if err := ts.Validate(); err != nil {
		return TimeSignature{}, err
	}
	return ts, nil
}

func (ts TimeSignature) MarshalText() ([]byte, error) {
	return []byte(ts.String()), nil
}

func (ts *TimeSignature) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeSignature(string(text))
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}

// Total sums the durations of a signature sequence.
func Total(sigs []TimeSignature) Duration {
	total := Zero
	for _, ts := range sigs {
		total = total.Add(ts.Duration())
	}
	return total
}

// Starts returns the start offset of every measure plus the final stop offset,
// so len(result) == len(sigs)+1.
func Starts(sigs []TimeSignature) []Duration {
	out := make([]Duration, 0, len(sigs)+1)
	offset := Zero
	out = append(out, offset)
	for _, ts := range sigs {
		offset = offset.Add(ts.Duration())
		out = append(out, offset)
	}
	return out
}
