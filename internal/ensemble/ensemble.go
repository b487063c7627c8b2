// Package ensemble arranges several independently generated parts over one
// shared model.
package ensemble

import (
	"errors"
	"fmt"
	"strings"
)

type Mode string

const (
	Solo Mode = "Solo"
	Duet Mode = "Duet"
	Trio Mode = "Trio"
	Band Mode = "Band"
)

var (
	ErrUnknownMode       = errors.New("unknown ensemble mode")
	ErrUnknownInstrument = errors.New("unknown instrument")
)

var modes = []Mode{Solo, Duet, Trio, Band}

// Modes lists the ensemble modes from smallest to largest.
func Modes() []Mode { return append([]Mode(nil), modes...) }

// ParseMode matches a mode name case-insensitively. The empty string is Solo.
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Solo, nil
	}
	for _, m := range modes {
		if strings.EqualFold(s, string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Size is the number of parts the mode plays.
func (m Mode) Size() int {
	switch m {
	case Duet:
		return 2
	case Trio:
		return 3
	case Band:
		return 4
	}
	return 1
}

// Instrument is a named General MIDI program.
type Instrument struct {
	Name    string
	Program uint8
}

var (
	Piano        = Instrument{"Piano", 0}
	Guitar       = Instrument{"Guitar", 24}
	ElectricBass = Instrument{"Electric Bass", 33}
	Violin       = Instrument{"Violin", 40}
	Strings      = Instrument{"Strings", 48}
	Saxophone    = Instrument{"Saxophone", 65}
	Flute        = Instrument{"Flute", 73}
)

// leads are the instruments a caller may choose for the melody.
var leads = []Instrument{Piano, Violin, Guitar, Flute, Saxophone}

// Instruments lists the selectable lead instruments.
func Instruments() []Instrument { return append([]Instrument(nil), leads...) }

// ParseInstrument matches a lead instrument name case-insensitively. The
// empty string is Piano.
func ParseInstrument(s string) (Instrument, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Piano, nil
	}
	for _, in := range leads {
		if strings.EqualFold(s, in.Name) {
			return in, nil
		}
	}
	return Instrument{}, fmt.Errorf("%w: %q", ErrUnknownInstrument, s)
}

// Part is one voice of an arrangement.
type Part struct {
	Role        string
	Instrument  Instrument
	Temperature float64
	// Octave shifts every note by whole octaves.
	Octave int
}

// Parts returns the voices of mode. The melody uses lead and the requested
// temperature; the supporting voices keep fixed temperatures and registers.
func Parts(mode Mode, lead Instrument, temperature float64) []Part {
	all := []Part{
		{Role: "melody", Instrument: lead, Temperature: temperature, Octave: 0},
		{Role: "bass", Instrument: ElectricBass, Temperature: 0.5, Octave: -2},
		{Role: "harmony", Instrument: Strings, Temperature: 0.8, Octave: -1},
		{Role: "counter-melody", Instrument: Flute, Temperature: 1.2, Octave: 1},
	}
	return all[:mode.Size()]
}
