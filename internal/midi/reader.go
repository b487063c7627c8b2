package midi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"slices"
)

// ReadFile decodes the MIDI file at path.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Decode reads a format 0 or 1 file. SMPTE time division, sysex and meta
// events other than track name and tempo are skipped. Unterminated notes
// are closed at the end of their track.
func Decode(r io.Reader) (*File, error) {
	var hdr [14]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrNotMIDI, err)
	}
	if string(hdr[:4]) != "MThd" {
		return nil, ErrNotMIDI
	}
	hlen := binary.BigEndian.Uint32(hdr[4:8])
	if hlen < 6 {
		return nil, fmt.Errorf("%w: header length %d", ErrNotMIDI, hlen)
	}
	f := &File{
		Format:   binary.BigEndian.Uint16(hdr[8:10]),
		Division: binary.BigEndian.Uint16(hdr[12:14]),
	}
	if f.Format > 1 {
		return nil, fmt.Errorf("midi: unsupported format %d", f.Format)
	}
	if _, err := io.CopyN(io.Discard, r, int64(hlen-6)); err != nil {
		return nil, ErrTruncated
	}
	ntracks := int(binary.BigEndian.Uint16(hdr[10:12]))

	for len(f.Tracks) < ntracks {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return nil, fmt.Errorf("%w: track %d header", ErrTruncated, len(f.Tracks))
		}
		size := binary.BigEndian.Uint32(chunk[4:])
		body := make([]byte, 0, min(size, 1<<20))
		buf := bytes.NewBuffer(body)
		if n, err := io.CopyN(buf, r, int64(size)); err != nil || n != int64(size) {
			return nil, fmt.Errorf("%w: track %d body", ErrTruncated, len(f.Tracks))
		}
		if string(chunk[:4]) != "MTrk" {
			// Alien chunks are allowed and ignored.
			continue
		}
		t, bpm, err := decodeTrack(buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("midi: track %d: %w", len(f.Tracks), err)
		}
		if bpm > 0 && f.BPM == 0 {
			f.BPM = bpm
		}
		f.Tracks = append(f.Tracks, t)
	}
	if f.BPM == 0 {
		f.BPM = DefaultBPM
	}
	return f, nil
}

type trackReader struct {
	data []byte
	pos  int
}

func (r *trackReader) next() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrTruncated
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *trackReader) varLen() (uint32, error) {
	var v uint32
	for i := 0; i < 4; i++ {
		b, err := r.next()
		if err != nil {
			return 0, err
		}
		v = v<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, fmt.Errorf("variable-length quantity longer than 4 bytes")
}

func (r *trackReader) take(n uint32) ([]byte, error) {
	if uint64(r.pos)+uint64(n) > uint64(len(r.data)) {
		return nil, ErrTruncated
	}
	b := r.data[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

func decodeTrack(data []byte) (Track, float64, error) {
	r := &trackReader{data: data}
	var (
		t       Track
		bpm     float64
		tick    uint32
		status  byte
		sawProg bool
	)
	// Open notes keyed by channel<<8|pitch, holding indices into t.Notes.
	open := make(map[uint16][]int)

	for r.pos < len(r.data) {
		delta, err := r.varLen()
		if err != nil {
			return t, 0, err
		}
		tick += delta

		b, err := r.next()
		if err != nil {
			return t, 0, err
		}
		switch {
		case b == 0xFF:
			kind, err := r.next()
			if err != nil {
				return t, 0, err
			}
			n, err := r.varLen()
			if err != nil {
				return t, 0, err
			}
			payload, err := r.take(n)
			if err != nil {
				return t, 0, err
			}
			switch kind {
			case 0x03:
				if t.Name == "" {
					t.Name = string(payload)
				}
			case 0x51:
				if len(payload) == 3 && bpm == 0 {
					us := uint32(payload[0])<<16 | uint32(payload[1])<<8 | uint32(payload[2])
					if us > 0 {
						bpm = 60_000_000 / float64(us)
					}
				}
			case 0x2F:
				r.pos = len(r.data)
			}
			status = 0
			continue
		case b == 0xF0 || b == 0xF7:
			n, err := r.varLen()
			if err != nil {
				return t, 0, err
			}
			if _, err := r.take(n); err != nil {
				return t, 0, err
			}
			status = 0
			continue
		case b&0x80 != 0:
			status = b
		default:
			if status == 0 {
				return t, 0, fmt.Errorf("data byte %#02x without running status at offset %d", b, r.pos-1)
			}
			r.pos--
		}

		ch := status & 0x0F
		switch status & 0xF0 {
		case 0x80, 0x90:
			pitch, err := r.next()
			if err != nil {
				return t, 0, err
			}
			vel, err := r.next()
			if err != nil {
				return t, 0, err
			}
			key := uint16(ch)<<8 | uint16(pitch)
			if status&0xF0 == 0x90 && vel > 0 {
				t.Notes = append(t.Notes, Note{Start: tick, Pitch: pitch, Velocity: vel, Channel: ch})
				open[key] = append(open[key], len(t.Notes)-1)
				continue
			}
			if idx := open[key]; len(idx) > 0 {
				n := &t.Notes[idx[0]]
				n.Duration = tick - n.Start
				open[key] = idx[1:]
			}
		case 0xA0, 0xB0, 0xE0:
			if _, err := r.take(2); err != nil {
				return t, 0, err
			}
		case 0xC0:
			prog, err := r.next()
			if err != nil {
				return t, 0, err
			}
			if !sawProg {
				t.Program, t.Channel, sawProg = prog, ch, true
			}
		case 0xD0:
			if _, err := r.take(1); err != nil {
				return t, 0, err
			}
		default:
			return t, 0, fmt.Errorf("unexpected status %#02x", status)
		}
	}
	for _, idx := range open {
		for _, i := range idx {
			t.Notes[i].Duration = tick - t.Notes[i].Start
		}
	}
	slices.SortStableFunc(t.Notes, func(a, b Note) int {
		if a.Start != b.Start {
			if a.Start < b.Start {
				return -1
			}
			return 1
		}
		return int(a.Pitch) - int(b.Pitch)
	})
	if !sawProg && len(t.Notes) > 0 {
		t.Channel = t.Notes[0].Channel
	}
	return t, bpm, nil
}
