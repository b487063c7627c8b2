// Package corpus holds the flat note sequence extracted from training MIDI
// files and draws seed windows from it.
package corpus

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/samcharles93/cadence/internal/vocab"
)

var ErrCorpusTooShort = errors.New("corpus too short for context window")

// Corpus is an ordered list of note tokens. It is not modified after Load.
type Corpus struct {
	Notes []string
}

// Load reads a corpus. Files ending in .json hold a JSON array of strings;
// anything else is read as one token per line.
func Load(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return Decode(data)
	}
	return parseLines(data)
}

// Decode parses a JSON array of tokens.
func Decode(data []byte) (*Corpus, error) {
	var notes []string
	if err := json.Unmarshal(data, &notes); err != nil {
		return nil, fmt.Errorf("corpus: %w", err)
	}
	return &Corpus{Notes: notes}, nil
}

func parseLines(data []byte) (*Corpus, error) {
	var notes []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		notes = append(notes, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("corpus: %w", err)
	}
	return &Corpus{Notes: notes}, nil
}

func (c *Corpus) MarshalJSON() ([]byte, error) {
	notes := c.Notes
	if notes == nil {
		notes = []string{}
	}
	return json.Marshal(notes)
}

func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Notes)
}

// Windows returns the number of valid window start offsets. A window must be
// followed by at least one token, matching how training pairs were built.
func (c *Corpus) Windows(seqLen int) int {
	if seqLen <= 0 {
		return 0
	}
	return max(c.Len()-seqLen, 0)
}

// Window encodes the seqLen tokens starting at offset.
func (c *Corpus) Window(v *vocab.Vocabulary, offset, seqLen int) ([]int, error) {
	if offset < 0 || offset >= c.Windows(seqLen) {
		return nil, fmt.Errorf("corpus: offset %d outside [0,%d)", offset, c.Windows(seqLen))
	}
	return v.Encode(c.Notes[offset : offset+seqLen])
}

// SeedWindow picks a start offset uniformly from the valid offsets and
// returns the encoded window.
func (c *Corpus) SeedWindow(rng *rand.Rand, v *vocab.Vocabulary, seqLen int) ([]int, error) {
	n := c.Windows(seqLen)
	if n == 0 {
		return nil, fmt.Errorf("%w: %d notes, window %d", ErrCorpusTooShort, c.Len(), seqLen)
	}
	return c.Window(v, rng.Intn(n), seqLen)
}

// Encoded returns the whole corpus as vocabulary indices.
func (c *Corpus) Encoded(v *vocab.Vocabulary) ([]int, error) {
	return v.Encode(c.Notes)
}
