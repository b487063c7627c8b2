package midi

import (
	"fmt"
	"slices"

	"github.com/samcharles93/cadence/internal/note"
)

// StepTicks is how far each token advances: half a quarter note.
const StepTicks = TicksPerQuarter / 2

// ExtractTokens converts the first track that sounds notes into tokens.
// Notes starting on the same tick become one chord token; a lone note keeps
// its pitch name. Percussion is ignored.
func ExtractTokens(f *File) []string {
	for i := range f.Tracks {
		t := &f.Tracks[i]
		if !t.HasNotes() {
			continue
		}
		return onsetTokens(t.Notes)
	}
	return nil
}

func onsetTokens(notes []Note) []string {
	var (
		out     []string
		pitches []int
		cur     uint32
	)
	flush := func() {
		if len(pitches) > 0 {
			out = append(out, note.Token(pitches))
			pitches = pitches[:0]
		}
	}
	sorted := slices.Clone(notes)
	slices.SortStableFunc(sorted, func(a, b Note) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		}
		return 0
	})
	for _, n := range sorted {
		if n.Channel == PercussionChannel {
			continue
		}
		if n.Start != cur {
			flush()
			cur = n.Start
		}
		if !slices.Contains(pitches, int(n.Pitch)) {
			pitches = append(pitches, int(n.Pitch))
		}
	}
	flush()
	return out
}

// TrackFromTokens lays tokens out one step apart, each lasting a step, and
// shifts every pitch by octaves. Chord voices that land on the same pitch
// after shifting sound once.
func TrackFromTokens(name string, program, channel uint8, tokens []string, octaves int) (Track, error) {
	t := Track{Name: name, Program: program, Channel: channel}
	for i, tok := range tokens {
		pitches, err := note.Parse(tok)
		if err != nil {
			return Track{}, fmt.Errorf("token %d: %w", i, err)
		}
		shifted := note.Transpose(pitches, octaves)
		slices.Sort(shifted)
		for _, p := range slices.Compact(shifted) {
			t.Notes = append(t.Notes, Note{
				Start:    uint32(i) * StepTicks,
				Duration: StepTicks,
				Pitch:    uint8(p),
				Velocity: DefaultVelocity,
				Channel:  channel,
			})
		}
	}
	return t, nil
}
