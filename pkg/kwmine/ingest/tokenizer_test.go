package ingest

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cognicore/kwmine/pkg/kwmine/internalerr"
)

func TestTokenizerBasic(t *testing.T) {
	tokenizer := NewTokenizer([]string{"for", "the"})

	got := tokenizer.Tokenize("Running Shoes for the Marathon")
	want := []string{"running", "shoes", "marathon"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize() = %v, want %v", got, want)
	}
}

func TestTokenizerDropsSingleCharacters(t *testing.T) {
	tokenizer := NewTokenizer(nil)

	got := tokenizer.Tokenize("a b shoes é size 9 10")
	want := []string{"shoes", "size", "10"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize() = %v, want %v", got, want)
	}
}

func TestTokenizerWhitespaceRuns(t *testing.T) {
	tokenizer := NewTokenizer(nil)

	got := tokenizer.Tokenize("  buy\t\tcheap \n shoes  ")
	want := []string{"buy", "cheap", "shoes"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize() = %v, want %v", got, want)
	}
}

func TestTokenizerEmpty(t *testing.T) {
	tokenizer := NewTokenizer(nil)

	for _, in := range []string{"", "   ", "\t\n"} {
		if got := tokenizer.Tokenize(in); len(got) != 0 {
			t.Errorf("Tokenize(%q) = %v, want empty", in, got)
		}
	}
}

func TestTokenizerStopwordsCaseInsensitive(t *testing.T) {
	tokenizer := NewTokenizer([]string{"FREE"})

	got := tokenizer.Tokenize("Free shipping FREE returns")
	want := []string{"shipping", "returns"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize() = %v, want %v", got, want)
	}
}

func TestTokenizerKeepsPunctuation(t *testing.T) {
	tokenizer := NewTokenizer(nil)

	got := tokenizer.Tokenize("nike's air-max 270!")
	want := []string{"nike's", "air-max", "270!"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize() = %v, want %v", got, want)
	}
}

func TestQueryRecordValidate(t *testing.T) {
	ok := QueryRecord{Text: "shoes", Impressions: 10, Clicks: 20, Cost: decimal.NewFromInt(5)}
	if err := ok.Validate(); err != nil {
		t.Errorf("clicks above impressions must be tolerated, got %v", err)
	}

	bad := []QueryRecord{
		{Text: "a", Impressions: -1},
		{Text: "b", Clicks: -1},
		{Text: "c", Cost: decimal.NewFromFloat(-0.5)},
		{Text: "d", Conversions: decimal.NewFromInt(-1)},
		{Text: "e", ConversionValue: decimal.NewFromInt(-3)},
	}
	for _, r := range bad {
		err := r.Validate()
		if !errors.Is(err, internalerr.ErrInvalidInput) {
			t.Errorf("Validate(%q) = %v, want ErrInvalidInput", r.Text, err)
		}
	}
}
