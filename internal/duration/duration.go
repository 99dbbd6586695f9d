// Package duration models exact musical durations and offsets as reduced
// fractions of a whole note, plus the time signatures that partition a
// segment into measures.
package duration

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Duration is a reduced fraction of a whole note. The zero value is zero.
// Offsets share the representation.
type Duration struct {
	num int64
	den int64
}

// Zero is the empty duration.
var Zero = Duration{}

// New returns num/den reduced. It panics when den is zero.
func New(num, den int64) Duration {
	if den == 0 {
		panic("duration: zero denominator")
	}
	if den < 0 {
		num, den = -num, -den
	}
	if num == 0 {
		return Duration{}
	}
	g := gcd(abs(num), den)
	return Duration{num: num / g, den: den / g}
}

// Whole returns n whole notes.
func Whole(n int64) Duration {
	return New(n, 1)
}

// Num returns the reduced numerator.
func (d Duration) Num() int64 { return d.num }

// Den returns the reduced denominator (1 for zero).
func (d Duration) Den() int64 {
	if d.den == 0 {
		return 1
	}
	return d.den
}

func (d Duration) Add(o Duration) Duration {
	return New(d.num*o.Den()+o.num*d.Den(), d.Den()*o.Den())
}

func (d Duration) Sub(o Duration) Duration {
	return New(d.num*o.Den()-o.num*d.Den(), d.Den()*o.Den())
}

func (d Duration) Mul(o Duration) Duration {
	return New(d.num*o.num, d.Den()*o.Den())
}

// Div panics when o is zero.
func (d Duration) Div(o Duration) Duration {
	if o.num == 0 {
		panic("duration: division by zero")
	}
	return New(d.num*o.Den(), d.Den()*o.num)
}

// Scale multiplies the duration by an integer.
func (d Duration) Scale(n int64) Duration {
	return New(d.num*n, d.Den())
}

// Cmp returns -1, 0 or +1.
func (d Duration) Cmp(o Duration) int {
	l := d.num * o.Den()
	r := o.num * d.Den()
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	default:
		return 0
	}
}

func (d Duration) Less(o Duration) bool  { return d.Cmp(o) < 0 }
func (d Duration) Equal(o Duration) bool { return d.Cmp(o) == 0 }
func (d Duration) IsZero() bool          { return d.num == 0 }
func (d Duration) Negative() bool        { return d.num < 0 }

// Float64 is the duration in whole notes.
func (d Duration) Float64() float64 {
	return float64(d.num) / float64(d.Den())
}

// String renders n/d, or n when the denominator is one.
func (d Duration) String() string {
	if d.Den() == 1 {
		return strconv.FormatInt(d.num, 10)
	}
	return fmt.Sprintf("%d/%d", d.num, d.Den())
}

// Parse reads "n/d" or "n".
func Parse(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Duration{}, fmt.Errorf("duration: empty value")
	}
	numText, denText, hasDen := strings.Cut(s, "/")
	num, err := strconv.ParseInt(strings.TrimSpace(numText), 10, 64)
	if err != nil {
		return Duration{}, fmt.Errorf("duration: parse %q: %w", s, err)
	}
	den := int64(1)
	if hasDen {
		den, err = strconv.ParseInt(strings.TrimSpace(denText), 10, 64)
		if err != nil {
			return Duration{}, fmt.Errorf("duration: parse %q: %w", s, err)
		}
		if den == 0 {
			return Duration{}, fmt.Errorf("duration: parse %q: zero denominator", s)
		}
	}
	return New(num, den), nil
}

// MustParse panics on malformed input. Intended for literals and tests.
func MustParse(s string) Duration {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("duration: expected string: %w", err)
	}
	parsed, err := Parse(text)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Sum adds a sequence of durations.
func Sum(values ...Duration) Duration {
	total := Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Max returns the larger of a and b.
func Max(a, b Duration) Duration {
	if a.Less(b) {
		return b
	}
	return a
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
