package midi

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestAppendVarLen(t *testing.T) {
	t.Parallel()
	tests := []struct {
		v    uint32
		want []byte
	}{
		{0, []byte{0x00}},
		{0x40, []byte{0x40}},
		{0x7F, []byte{0x7F}},
		{0x80, []byte{0x81, 0x00}},
		{0x2000, []byte{0xC0, 0x00}},
		{0x0FFFFFFF, []byte{0xFF, 0xFF, 0xFF, 0x7F}},
	}
	for _, tc := range tests {
		got := appendVarLen(nil, tc.v)
		if !bytes.Equal(got, tc.want) {
			t.Errorf("appendVarLen(%#x) = % x, want % x", tc.v, got, tc.want)
		}
		r := &trackReader{data: got}
		back, err := r.varLen()
		if err != nil || back != tc.v {
			t.Errorf("varLen(% x) = %#x, %v", got, back, err)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	melody, err := TrackFromTokens("melody", 0, 0, []string{"C4", "0.4.7", "E4", "E4"}, 0)
	if err != nil {
		t.Fatalf("TrackFromTokens: %v", err)
	}
	bass, err := TrackFromTokens("bass", 33, 1, []string{"C4", "G4"}, -2)
	if err != nil {
		t.Fatalf("TrackFromTokens: %v", err)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, &File{BPM: 90, Tracks: []Track{melody, bass}}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("MThd")) {
		t.Fatal("missing MThd header")
	}

	f, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Format != 1 || f.Division != TicksPerQuarter {
		t.Fatalf("format %d division %d", f.Format, f.Division)
	}
	if math.Abs(f.BPM-90) > 0.01 {
		t.Fatalf("BPM = %v, want 90", f.BPM)
	}
	if len(f.Tracks) != 3 {
		t.Fatalf("got %d tracks, want conductor + 2", len(f.Tracks))
	}
	if f.Tracks[0].HasNotes() {
		t.Fatal("conductor track should carry no notes")
	}
	got := f.Tracks[2]
	if got.Name != "bass" || got.Program != 33 || got.Channel != 1 {
		t.Fatalf("bass track header = %q program %d channel %d", got.Name, got.Program, got.Channel)
	}
	want := []Note{
		{Start: 0, Duration: StepTicks, Pitch: 36, Velocity: DefaultVelocity, Channel: 1},
		{Start: StepTicks, Duration: StepTicks, Pitch: 43, Velocity: DefaultVelocity, Channel: 1},
	}
	if !reflect.DeepEqual(got.Notes, want) {
		t.Fatalf("bass notes = %+v", got.Notes)
	}
	if n := len(f.Tracks[1].Notes); n != 6 {
		t.Fatalf("melody has %d notes, want 6", n)
	}
	if toks := ExtractTokens(f); !reflect.DeepEqual(toks, []string{"C4", "0.4.7", "E4", "E4"}) {
		t.Fatalf("ExtractTokens = %v", toks)
	}
}

func TestRepeatedPitchReleasedBeforeRestrike(t *testing.T) {
	t.Parallel()
	tr, _ := TrackFromTokens("", 0, 0, []string{"E4", "E4"}, 0)
	evs := trackEvents(&tr)
	// program, on(0), off(240), on(240), off(480)
	var kinds []byte
	for _, ev := range evs {
		kinds = append(kinds, ev.data[0]&0xF0)
	}
	want := []byte{0xC0, 0x90, 0x80, 0x90, 0x80}
	if !bytes.Equal(kinds, want) {
		t.Fatalf("event order % x, want % x", kinds, want)
	}
}

// rawFile builds a format 0 file around a single hand-written track body.
func rawFile(body []byte) []byte {
	var b bytes.Buffer
	b.WriteString("MThd")
	b.Write([]byte{0, 0, 0, 6, 0, 0, 0, 1, 0x00, 0x60})
	b.WriteString("MTrk")
	n := len(body)
	b.Write([]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
	b.Write(body)
	return b.Bytes()
}

func TestDecodeRunningStatusAndVelocityZeroOff(t *testing.T) {
	t.Parallel()
	body := []byte{
		0x00, 0xFF, 0x03, 0x04, 'l', 'e', 'a', 'd',
		0x00, 0xF0, 0x02, 0x7E, 0xF7, // sysex
		0x00, 0x92, 60, 100, // note on ch 3
		0x00, 64, 100, // running status note on
		0x60, 60, 0, // velocity zero note off
		0x00, 64, 0,
		0x00, 0xB2, 7, 100, // controller
		0x00, 0x99, 36, 100, // percussion
		0x30, 0x89, 36, 0,
		0x00, 0xFF, 0x2F, 0x00,
	}
	f, err := Decode(bytes.NewReader(rawFile(body)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Format != 0 || f.BPM != DefaultBPM {
		t.Fatalf("format %d bpm %v", f.Format, f.BPM)
	}
	tr := f.Tracks[0]
	if tr.Name != "lead" {
		t.Fatalf("name = %q", tr.Name)
	}
	if len(tr.Notes) != 3 {
		t.Fatalf("got %d notes: %+v", len(tr.Notes), tr.Notes)
	}
	for _, n := range tr.Notes[:2] {
		if n.Duration != 0x60 || n.Channel != 2 {
			t.Fatalf("unexpected note %+v", n)
		}
	}
	if toks := ExtractTokens(f); !reflect.DeepEqual(toks, []string{"0.4"}) {
		t.Fatalf("ExtractTokens = %v", toks)
	}
}

func TestDecodeClosesDanglingNotes(t *testing.T) {
	t.Parallel()
	body := []byte{
		0x00, 0x90, 67, 90,
		0x83, 0x60, 0xFF, 0x2F, 0x00,
	}
	f, err := Decode(bytes.NewReader(rawFile(body)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := f.Tracks[0].Notes[0].Duration; got != 480 {
		t.Fatalf("dangling note duration = %d, want 480", got)
	}
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrNotMIDI},
		{"wrong_magic", []byte("RIFF\x00\x00\x00\x06\x00\x00\x00\x01\x00\x60"), ErrNotMIDI},
		{"missing_track", []byte("MThd\x00\x00\x00\x06\x00\x01\x00\x02\x01\xe0"), ErrTruncated},
		{"truncated_event", rawFile([]byte{0x00, 0x90, 60}), ErrTruncated},
	}
	for _, tc := range tests {
		if _, err := Decode(bytes.NewReader(tc.data)); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	if _, err := Decode(bytes.NewReader(rawFile([]byte{0x00, 60, 100}))); err == nil {
		t.Error("expected error for data byte without status")
	}
	if _, err := Decode(bytes.NewReader([]byte("MThd\x00\x00\x00\x06\x00\x02\x00\x01\x01\xe0"))); err == nil {
		t.Error("expected error for format 2")
	}
}

func TestExtractTokensSkipsPercussionOnlyTracks(t *testing.T) {
	t.Parallel()
	f := &File{Tracks: []Track{
		{Notes: []Note{{Start: 0, Pitch: 36, Channel: PercussionChannel}}},
		{Notes: []Note{{Start: 0, Pitch: 62}, {Start: 240, Pitch: 60}, {Start: 240, Pitch: 64}}},
	}}
	if got := ExtractTokens(f); !reflect.DeepEqual(got, []string{"D4", "0.4"}) {
		t.Fatalf("ExtractTokens = %v", got)
	}
	if got := ExtractTokens(&File{}); got != nil {
		t.Fatalf("ExtractTokens on empty file = %v", got)
	}
}

func TestTrackFromTokensRejectsBadToken(t *testing.T) {
	t.Parallel()
	if _, err := TrackFromTokens("x", 0, 0, []string{"C4", "??"}, 0); err == nil {
		t.Fatal("expected error for invalid token")
	}
}

func TestTrackFromTokensMergesFoldedVoices(t *testing.T) {
	t.Parallel()
	tr, err := TrackFromTokens("low", 0, 0, []string{"C4.C5", "0.0.4"}, -6)
	if err != nil {
		t.Fatalf("TrackFromTokens: %v", err)
	}
	var first, second []uint8
	for _, n := range tr.Notes {
		if n.Start == 0 {
			first = append(first, n.Pitch)
		} else {
			second = append(second, n.Pitch)
		}
	}
	if !reflect.DeepEqual(first, []uint8{0}) {
		t.Fatalf("C4.C5 down six octaves = %v, want [0]", first)
	}
	if !reflect.DeepEqual(second, []uint8{0, 4}) {
		t.Fatalf("0.0.4 down six octaves = %v, want [0 4]", second)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, &File{BPM: DefaultBPM, Tracks: []Track{tr}}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	f, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := 0
	for _, track := range f.Tracks {
		got += len(track.Notes)
	}
	if got != 3 {
		t.Fatalf("decoded %d notes, want 3", got)
	}
}

func TestReadFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "song.mid")
	tr, _ := TrackFromTokens("piano", 0, 0, []string{"A4"}, 0)
	var buf bytes.Buffer
	if err := Encode(&buf, &File{BPM: 120, Tracks: []Track{tr}}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got := ExtractTokens(f); !reflect.DeepEqual(got, []string{"A4"}) {
		t.Fatalf("tokens = %v", got)
	}
}
