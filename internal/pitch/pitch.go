// Package pitch parses and compares the pitches carried by notes and chords.
// Pitch 0 is middle C; each unit is one semitone.
package pitch

import (
	"fmt"
	"strconv"
	"strings"
)

// Pitch is a semitone distance from middle C.
type Pitch int

var letterClasses = map[byte]int{'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11}

var classNames = [12]string{"c", "cs", "d", "ef", "e", "f", "fs", "g", "af", "a", "bf", "b"}

// Class returns the pitch class in [0, 12).
func (p Pitch) Class() int {
	return ((int(p) % 12) + 12) % 12
}

// Octave returns the scientific octave number (middle C is 4).
func (p Pitch) Octave() int {
	n := int(p)
	if n >= 0 {
		return 4 + n/12
	}
	return 4 - (-n+11)/12
}

// String renders the pitch with apostrophe/comma octave ticks.
func (p Pitch) String() string {
	name := classNames[p.Class()]
	ticks := p.Octave() - 3
	switch {
	case ticks > 0:
		return name + strings.Repeat("'", ticks)
	case ticks < 0:
		return name + strings.Repeat(",", -ticks)
	default:
		return name
	}
}

// Parse accepts tick notation ("c'", "fs,", "bf''") or scientific notation
// ("C4", "F#3", "Bb5").
func Parse(text string) (Pitch, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, fmt.Errorf("pitch: empty name")
	}
	lower := strings.ToLower(s)
	class, ok := letterClasses[lower[0]]
	if !ok {
		return 0, fmt.Errorf("pitch: unknown letter in %q", text)
	}
	rest := s[1:]
	if idx := strings.IndexAny(rest, "-0123456789"); idx >= 0 {
		accidental, err := accidentalOffset(strings.ToLower(rest[:idx]), true)
		if err != nil {
			return 0, fmt.Errorf("pitch: %q: %w", text, err)
		}
		octave, err := strconv.Atoi(rest[idx:])
		if err != nil {
			return 0, fmt.Errorf("pitch: %q: bad octave", text)
		}
		return Pitch((octave-4)*12 + class + accidental), nil
	}
	tickStart := strings.IndexAny(rest, "',")
	accText := rest
	ticks := ""
	if tickStart >= 0 {
		accText, ticks = rest[:tickStart], rest[tickStart:]
	}
	accidental, err := accidentalOffset(strings.ToLower(accText), false)
	if err != nil {
		return 0, fmt.Errorf("pitch: %q: %w", text, err)
	}
	octave := 3
	for _, r := range ticks {
		switch r {
		case '\'':
			octave++
		case ',':
			octave--
		default:
			return 0, fmt.Errorf("pitch: %q: unexpected %q", text, r)
		}
	}
	return Pitch((octave-4)*12 + class + accidental), nil
}

// MustParse panics on malformed input.
func MustParse(text string) Pitch {
	p, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return p
}

func accidentalOffset(text string, scientific bool) (int, error) {
	switch text {
	case "":
		return 0, nil
	case "s", "#":
		return 1, nil
	case "ss", "##", "x":
		return 2, nil
	case "f":
		return -1, nil
	case "ff":
		return -2, nil
	case "b":
		if scientific {
			return -1, nil
		}
	case "bb":
		if scientific {
			return -2, nil
		}
	}
	return 0, fmt.Errorf("unknown accidental %q", text)
}

func (p Pitch) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Pitch) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Range is an inclusive pitch interval.
type Range struct {
	Low  Pitch
	High Pitch
}

// Contains reports whether p lies inside the range.
func (r Range) Contains(p Pitch) bool {
	return p >= r.Low && p <= r.High
}

// IsZero reports whether the range is unset.
func (r Range) IsZero() bool {
	return r.Low == 0 && r.High == 0
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s]", r.Low, r.High)
}

// ParseRange reads "[low, high]" (brackets optional).
func ParseRange(text string) (Range, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	lowText, highText, ok := strings.Cut(s, ",")
	if !ok {
		return Range{}, fmt.Errorf("pitch: range %q must be [low, high]", text)
	}
	low, err := Parse(lowText)
	if err != nil {
		return Range{}, err
	}
	high, err := Parse(highText)
	if err != nil {
		return Range{}, err
	}
	if high < low {
		return Range{}, fmt.Errorf("pitch: range %q is inverted", text)
	}
	return Range{Low: low, High: high}, nil
}

func (r Range) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Range) UnmarshalText(text []byte) error {
	parsed, err := ParseRange(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
