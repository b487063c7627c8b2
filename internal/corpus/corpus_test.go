package corpus

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/goccy/go-json"

	"github.com/samcharles93/cadence/internal/vocab"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	c, err := Load(writeFile(t, "notes.json", `["C4","D4","0.4.7"]`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(c.Notes, []string{"C4", "D4", "0.4.7"}) {
		t.Fatalf("unexpected notes: %v", c.Notes)
	}
}

func TestLoadLines(t *testing.T) {
	t.Parallel()
	c, err := Load(writeFile(t, "notes.txt", "C4\n\n  D4 \nE4\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(c.Notes, []string{"C4", "D4", "E4"}) {
		t.Fatalf("unexpected notes: %v", c.Notes)
	}
}

func TestMarshalEmptyCorpus(t *testing.T) {
	t.Parallel()
	data, err := json.Marshal(&Corpus{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("expected [], got %s", data)
	}
}

func TestWindows(t *testing.T) {
	t.Parallel()
	c := &Corpus{Notes: []string{"a", "b", "c", "d", "e"}}
	tests := []struct {
		seqLen int
		want   int
	}{
		{1, 4},
		{4, 1},
		{5, 0},
		{9, 0},
		{0, 0},
	}
	for _, tc := range tests {
		if got := c.Windows(tc.seqLen); got != tc.want {
			t.Errorf("Windows(%d) = %d, want %d", tc.seqLen, got, tc.want)
		}
	}
}

func TestSeedWindowCoversEveryOffset(t *testing.T) {
	t.Parallel()
	notes := []string{"A4", "B4", "C4", "D4", "E4", "F4"}
	c := &Corpus{Notes: notes}
	v := vocab.Build(notes)
	rng := rand.New(rand.NewSource(3))

	seen := map[int]bool{}
	for i := 0; i < 500; i++ {
		w, err := c.SeedWindow(rng, v, 3)
		if err != nil {
			t.Fatalf("SeedWindow: %v", err)
		}
		if len(w) != 3 {
			t.Fatalf("window length %d, want 3", len(w))
		}
		// Notes are distinct and sorted, so the first index is the offset.
		seen[w[0]] = true
		if w[0] >= c.Windows(3) {
			t.Fatalf("window starts at invalid offset %d", w[0])
		}
	}
	if len(seen) != c.Windows(3) {
		t.Fatalf("expected all %d offsets to be drawn, saw %v", c.Windows(3), seen)
	}
}

func TestSeedWindowTooShort(t *testing.T) {
	t.Parallel()
	c := &Corpus{Notes: []string{"C4", "D4"}}
	_, err := c.SeedWindow(rand.New(rand.NewSource(1)), vocab.Build(c.Notes), 2)
	if !errors.Is(err, ErrCorpusTooShort) {
		t.Fatalf("expected ErrCorpusTooShort, got %v", err)
	}
}

func TestWindowUnknownToken(t *testing.T) {
	t.Parallel()
	c := &Corpus{Notes: []string{"C4", "D4", "X9", "E4"}}
	v := vocab.Build([]string{"C4", "D4", "E4"})
	if _, err := c.Window(v, 1, 2); !errors.Is(err, vocab.ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
}
