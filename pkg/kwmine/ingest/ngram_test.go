package ingest

import (
	"reflect"
	"testing"
)

func TestNGrams(t *testing.T) {
	tokens := []string{"buy", "cheap", "shoes"}

	tests := []struct {
		n    int
		want []string
	}{
		{1, []string{"buy", "cheap", "shoes"}},
		{2, []string{"buy cheap", "cheap shoes"}},
		{3, []string{"buy cheap shoes"}},
		{4, nil},
		{0, nil},
		{-1, nil},
	}

	for _, tt := range tests {
		got := NGrams(tokens, tt.n)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("NGrams(n=%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestNGramsKeepsRepeats(t *testing.T) {
	tokens := []string{"red", "shoes", "red", "shoes"}

	got := NGrams(tokens, 2)
	want := []string{"red shoes", "shoes red", "red shoes"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NGrams() = %v, want %v", got, want)
	}
	if len(got) != len(tokens)-2+1 {
		t.Errorf("expected L-n+1 = %d windows, got %d", len(tokens)-1, len(got))
	}
}

func TestNGramsEmpty(t *testing.T) {
	if got := NGrams(nil, 1); len(got) != 0 {
		t.Errorf("NGrams(nil) = %v, want empty", got)
	}
}
