package generate

import (
	"reflect"
	"testing"
)

func TestWindowPushKeepsLength(t *testing.T) {
	t.Parallel()
	w := NewWindow([]int{1, 2, 3, 4}, 4)
	for i := 0; i < 10; i++ {
		w.Push(10 + i)
		if w.Len() != 4 {
			t.Fatalf("after push %d: Len() = %d", i, w.Len())
		}
	}
	if got := w.Indices(); !reflect.DeepEqual(got, []int{16, 17, 18, 19}) {
		t.Fatalf("Indices() = %v", got)
	}
}

func TestWindowDropsOldestFirst(t *testing.T) {
	t.Parallel()
	w := NewWindow([]int{0, 1, 2}, 3)
	w.Push(7)
	if got := w.Indices(); !reflect.DeepEqual(got, []int{1, 2, 7}) {
		t.Fatalf("Indices() = %v", got)
	}
	if w.At(0) != 1 || w.At(2) != 7 {
		t.Fatalf("At() mismatch: %d %d", w.At(0), w.At(2))
	}
}

func TestWindowCopiesTrailingSeed(t *testing.T) {
	t.Parallel()
	seed := []int{9, 8, 1, 2}
	w := NewWindow(seed, 2)
	seed[3] = 100
	if got := w.Indices(); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("Indices() = %v", got)
	}
}

func TestWindowNormalize(t *testing.T) {
	t.Parallel()
	w := NewWindow([]int{0, 2, 4}, 3)
	got := w.Normalize(nil, 4)
	if !reflect.DeepEqual(got, []float32{0, 0.5, 1}) {
		t.Fatalf("Normalize = %v", got)
	}
	buf := make([]float32, 0, 8)
	got = w.Normalize(buf, 0)
	if !reflect.DeepEqual(got, []float32{0, 0, 0}) {
		t.Fatalf("Normalize with zero scale = %v", got)
	}
}

func TestNewWindowPanicsOnShortSeed(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewWindow([]int{1}, 2)
}

func TestNormalizationScale(t *testing.T) {
	t.Parallel()
	if DivideBySize.Scale(10) != 10 {
		t.Fatal("DivideBySize.Scale(10) != 10")
	}
	if DivideBySizeMinusOne.Scale(10) != 9 {
		t.Fatal("DivideBySizeMinusOne.Scale(10) != 9")
	}
	if DivideBySizeMinusOne.Scale(1) != 1 {
		t.Fatal("single-token vocabulary must not divide by zero")
	}
}

func TestParseNormalization(t *testing.T) {
	t.Parallel()
	for _, n := range []Normalization{DivideBySize, DivideBySizeMinusOne} {
		got, err := ParseNormalization(n.String())
		if err != nil || got != n {
			t.Fatalf("ParseNormalization(%q) = %v, %v", n.String(), got, err)
		}
	}
	if got, err := ParseNormalization(""); err != nil || got != DivideBySize {
		t.Fatalf("empty name = %v, %v", got, err)
	}
	if _, err := ParseNormalization("log"); err == nil {
		t.Fatal("expected error for unknown normalization")
	}
}
