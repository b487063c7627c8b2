// Package midi reads and writes Standard MIDI Files.
//
// Only what note sequences need is modeled: tempo, track names, program
// changes and note on/off pairs. Everything else is skipped when reading.
package midi

import "errors"

const (
	// TicksPerQuarter is the division written to every file.
	TicksPerQuarter = 480
	// DefaultBPM applies when a file carries no tempo event.
	DefaultBPM = 120
	// PercussionChannel is General MIDI channel 10, zero based.
	PercussionChannel = 9
	DefaultVelocity   = 100
)

var (
	ErrNotMIDI   = errors.New("not a standard MIDI file")
	ErrTruncated = errors.New("truncated MIDI data")
)

// Note is one sounding pitch. Times are in ticks.
type Note struct {
	Start    uint32
	Duration uint32
	Pitch    uint8
	Velocity uint8
	Channel  uint8
}

type Track struct {
	Name    string
	Program uint8
	Channel uint8
	Notes   []Note
}

// File is a decoded or to-be-encoded song. Format is 0 or 1; files written
// by Encode are always format 1 with a leading conductor track.
type File struct {
	Format   uint16
	Division uint16
	BPM      float64
	Tracks   []Track
}

// HasNotes reports whether the track sounds anything outside the
// percussion channel.
func (t *Track) HasNotes() bool {
	for _, n := range t.Notes {
		if n.Channel != PercussionChannel {
			return true
		}
	}
	return false
}

func microsPerQuarter(bpm float64) uint32 {
	if !(bpm > 0) {
		bpm = DefaultBPM
	}
	us := 60_000_000 / bpm
	return uint32(min(max(us, 1), 0xFFFFFF))
}
