package midi

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"slices"
)

type event struct {
	tick uint32
	// order sorts events sharing a tick: meta first, then note-offs, then
	// note-ons so a repeated pitch is released before it is struck again.
	order int
	data  []byte
}

// Encode writes f as a format 1 file: a conductor track holding the tempo,
// then one track per entry in f.Tracks. f.Format and f.Division are ignored.
func Encode(w io.Writer, f *File) error {
	if len(f.Tracks) > 0xFFFF-1 {
		return fmt.Errorf("midi: too many tracks (%d)", len(f.Tracks))
	}
	bw := bufio.NewWriter(w)
	hdr := make([]byte, 0, 14)
	hdr = append(hdr, "MThd"...)
	hdr = binary.BigEndian.AppendUint32(hdr, 6)
	hdr = binary.BigEndian.AppendUint16(hdr, 1)
	hdr = binary.BigEndian.AppendUint16(hdr, uint16(len(f.Tracks)+1))
	hdr = binary.BigEndian.AppendUint16(hdr, TicksPerQuarter)
	if _, err := bw.Write(hdr); err != nil {
		return err
	}

	tempo := microsPerQuarter(f.BPM)
	conductor := []event{
		{order: 0, data: []byte{0xFF, 0x51, 0x03, byte(tempo >> 16), byte(tempo >> 8), byte(tempo)}},
		// 4/4, 24 clocks per click, 8 32nds per quarter.
		{order: 0, data: []byte{0xFF, 0x58, 0x04, 4, 2, 24, 8}},
	}
	if err := writeTrack(bw, conductor); err != nil {
		return err
	}
	for i := range f.Tracks {
		if err := writeTrack(bw, trackEvents(&f.Tracks[i])); err != nil {
			return fmt.Errorf("midi: track %d: %w", i, err)
		}
	}
	return bw.Flush()
}

func trackEvents(t *Track) []event {
	ch := t.Channel & 0x0F
	evs := make([]event, 0, 2*len(t.Notes)+2)
	if t.Name != "" {
		evs = append(evs, event{data: metaText(0x03, t.Name)})
	}
	evs = append(evs, event{data: []byte{0xC0 | ch, t.Program & 0x7F}})
	for _, n := range t.Notes {
		vel := n.Velocity & 0x7F
		if vel == 0 {
			vel = DefaultVelocity
		}
		evs = append(evs,
			event{tick: n.Start, order: 2, data: []byte{0x90 | ch, n.Pitch & 0x7F, vel}},
			event{tick: n.Start + n.Duration, order: 1, data: []byte{0x80 | ch, n.Pitch & 0x7F, 0}},
		)
	}
	slices.SortStableFunc(evs, func(a, b event) int {
		if a.tick != b.tick {
			if a.tick < b.tick {
				return -1
			}
			return 1
		}
		return a.order - b.order
	})
	return evs
}

func metaText(kind byte, s string) []byte {
	b := []byte{0xFF, kind}
	b = appendVarLen(b, uint32(len(s)))
	return append(b, s...)
}

func writeTrack(w io.Writer, evs []event) error {
	var body bytes.Buffer
	var last uint32
	var buf []byte
	for _, ev := range evs {
		buf = appendVarLen(buf[:0], ev.tick-last)
		body.Write(buf)
		body.Write(ev.data)
		last = ev.tick
	}
	body.Write([]byte{0x00, 0xFF, 0x2F, 0x00})

	var hdr [8]byte
	copy(hdr[:4], "MTrk")
	binary.BigEndian.PutUint32(hdr[4:], uint32(body.Len()))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := body.WriteTo(w)
	return err
}

// appendVarLen appends v as a MIDI variable-length quantity.
func appendVarLen(b []byte, v uint32) []byte {
	var tmp [5]byte
	i := len(tmp) - 1
	tmp[i] = byte(v & 0x7F)
	for v >>= 7; v > 0; v >>= 7 {
		i--
		tmp[i] = byte(v&0x7F) | 0x80
	}
	return append(b, tmp[i:]...)
}
