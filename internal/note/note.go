// Package note converts between note tokens and MIDI note numbers.
//
// A token is a pitch name with octave ("C4", "F#3", "E-4", "Bb2"), a bare
// pitch class ("4"), or a chord of pitch classes or names joined by dots
// ("0.4.7", "C4.E4"). Pitch classes sound in octave 4.
package note

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// MiddleC is the MIDI number of C4; bare pitch classes are placed above it.
const MiddleC = 60

var ErrInvalidToken = errors.New("invalid note token")

var sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var letterClass = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

// IsChord reports whether the token has more than one component or is a bare
// pitch class.
func IsChord(token string) bool {
	if strings.Contains(token, ".") {
		return true
	}
	_, err := strconv.Atoi(token)
	return err == nil
}

// Parse returns the MIDI note numbers a token sounds, in token order.
func Parse(token string) ([]int, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidToken)
	}
	parts := strings.Split(token, ".")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := parseOne(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidToken, token, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func parseOne(s string) (int, error) {
	if s == "" {
		return 0, errors.New("empty component")
	}
	if n, err := strconv.Atoi(s); err == nil {
		switch {
		case n < 0 || n > 127:
			return 0, fmt.Errorf("note number %d outside [0,127]", n)
		case n < 12:
			return MiddleC + n, nil
		default:
			return n, nil
		}
	}
	return ParseName(s)
}

// ParseName parses a pitch name with octave. Accidentals are '#' for sharp
// and '-' or 'b' for flat, and may repeat.
func ParseName(s string) (int, error) {
	if s == "" {
		return 0, errors.New("empty pitch name")
	}
	pc, ok := letterClass[upper(s[0])]
	if !ok {
		return 0, fmt.Errorf("unknown pitch letter %q", s[0])
	}
	i := 1
	for ; i < len(s); i++ {
		if s[i] == '#' {
			pc++
		} else if s[i] == '-' || s[i] == 'b' {
			pc--
		} else {
			break
		}
	}
	if i == len(s) {
		return 0, fmt.Errorf("pitch %q has no octave", s)
	}
	oct, err := strconv.Atoi(s[i:])
	if err != nil {
		return 0, fmt.Errorf("pitch %q: bad octave", s)
	}
	n := (oct+1)*12 + pc
	if n < 0 || n > 127 {
		return 0, fmt.Errorf("pitch %q outside MIDI range", s)
	}
	return n, nil
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

// Name renders a MIDI number as a sharp-spelled pitch name, e.g. 61 is "C#4".
func Name(midi int) string {
	return sharpNames[mod12(midi)] + strconv.Itoa(midi/12-1)
}

// PitchClass folds a MIDI number into 0..11.
func PitchClass(midi int) int { return mod12(midi) }

func mod12(n int) int {
	r := n % 12
	if r < 0 {
		r += 12
	}
	return r
}

// Token renders the MIDI numbers sounding at one onset: a single note uses
// its pitch name, several form a chord token.
func Token(midis []int) string {
	switch len(midis) {
	case 0:
		return ""
	case 1:
		return Name(midis[0])
	}
	return ChordToken(midis)
}

// ChordToken returns the normal order of the pitch-class set of midis joined
// by dots, e.g. {C, E, G} in any voicing is "0.4.7".
func ChordToken(midis []int) string {
	order := NormalOrder(midis)
	parts := make([]string, len(order))
	for i, pc := range order {
		parts[i] = strconv.Itoa(pc)
	}
	return strings.Join(parts, ".")
}

// NormalOrder returns the most compact rotation of the pitch-class set. Ties
// on total span go to the rotation packed most tightly from the bottom, then
// to the lowest starting pitch class.
func NormalOrder(midis []int) []int {
	set := make([]int, 0, len(midis))
	for _, m := range midis {
		set = append(set, mod12(m))
	}
	slices.Sort(set)
	set = slices.Compact(set)
	n := len(set)
	if n <= 1 {
		return set
	}

	best := -1
	var bestIntervals []int
	for r := 0; r < n; r++ {
		intervals := make([]int, 0, n-1)
		for k := n - 1; k >= 1; k-- {
			intervals = append(intervals, mod12(set[(r+k)%n]-set[r]))
		}
		if best < 0 || slices.Compare(intervals, bestIntervals) < 0 {
			best, bestIntervals = r, intervals
		}
	}
	out := make([]int, n)
	for k := range out {
		out[k] = set[(best+k)%n]
	}
	return out
}

// Transpose shifts every note by octaves*12 semitones. Notes pushed outside
// 0..127 are folded back by whole octaves so the pitch class is preserved.
func Transpose(midis []int, octaves int) []int {
	out := make([]int, len(midis))
	for i, m := range midis {
		n := m + 12*octaves
		for n < 0 {
			n += 12
		}
		for n > 127 {
			n -= 12
		}
		out[i] = n
	}
	return out
}
