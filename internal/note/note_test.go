package note

import (
	"errors"
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		token string
		want  []int
	}{
		{"C4", []int{60}},
		{"A4", []int{69}},
		{"F#3", []int{54}},
		{"E-4", []int{63}},
		{"Bb2", []int{46}},
		{"B--2", []int{45}},
		{"c5", []int{72}},
		{"4", []int{64}},
		{"0.4.7", []int{60, 64, 67}},
		{"11.2.5", []int{71, 62, 65}},
		{"C4.E4", []int{60, 64}},
		{"64", []int{64}},
	}
	for _, tc := range tests {
		got, err := Parse(tc.token)
		if err != nil {
			t.Errorf("Parse(%q): %v", tc.token, err)
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Parse(%q) = %v, want %v", tc.token, got, tc.want)
		}
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()
	for _, token := range []string{"", "H4", "C", "C#", "0..4", "200", "-3", "C4x", "A9"} {
		if _, err := Parse(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Parse(%q): expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestNameRoundTrip(t *testing.T) {
	t.Parallel()
	if got := Name(61); got != "C#4" {
		t.Fatalf("Name(61) = %q", got)
	}
	for m := 12; m <= 127; m++ {
		got, err := Parse(Name(m))
		if err != nil {
			t.Fatalf("Parse(Name(%d)): %v", m, err)
		}
		if got[0] != m {
			t.Fatalf("Parse(Name(%d)) = %d", m, got[0])
		}
	}
}

func TestIsChord(t *testing.T) {
	t.Parallel()
	tests := map[string]bool{"0.4.7": true, "4": true, "C4": false, "F#3": false, "C4.E4": true}
	for token, want := range tests {
		if got := IsChord(token); got != want {
			t.Errorf("IsChord(%q) = %v, want %v", token, got, want)
		}
	}
}

func TestNormalOrder(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   []int
		want []int
	}{
		{[]int{60, 64, 67}, []int{0, 4, 7}},
		{[]int{67, 72, 76}, []int{0, 4, 7}},
		{[]int{64, 67, 72}, []int{0, 4, 7}},
		{[]int{62, 65, 69}, []int{2, 5, 9}},
		{[]int{71, 62, 65}, []int{11, 2, 5}},
		{[]int{60, 72}, []int{0}},
		{[]int{59, 61}, []int{11, 1}},
		{nil, []int{}},
	}
	for _, tc := range tests {
		got := NormalOrder(tc.in)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("NormalOrder(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestToken(t *testing.T) {
	t.Parallel()
	if got := Token([]int{62}); got != "D4" {
		t.Fatalf("Token single = %q", got)
	}
	if got := Token([]int{67, 64, 60}); got != "0.4.7" {
		t.Fatalf("Token chord = %q", got)
	}
	if got := Token(nil); got != "" {
		t.Fatalf("Token empty = %q", got)
	}
}

func TestTranspose(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      []int
		octaves int
		want    []int
	}{
		{[]int{60, 64}, -2, []int{36, 40}},
		{[]int{60}, 1, []int{72}},
		{[]int{5}, -1, []int{5}},
		{[]int{120}, 1, []int{120}},
		{[]int{127}, 2, []int{127}},
	}
	for _, tc := range tests {
		got := Transpose(tc.in, tc.octaves)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Transpose(%v, %d) = %v, want %v", tc.in, tc.octaves, got, tc.want)
		}
	}
}
