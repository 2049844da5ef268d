package review

import (
	"reflect"
	"testing"
)

func TestParseEmphasisMistakePair(t *testing.T) {
	wrong := ParseEmphasis("I *has* a dog")
	wantWrong := []Span{
		{Text: "I "},
		{Text: "has", Emphasized: true},
		{Text: " a dog"},
	}
	if !reflect.DeepEqual(wrong, wantWrong) {
		t.Fatalf("wrong side: got %#v, want %#v", wrong, wantWrong)
	}

	correct := ParseEmphasis("I *have* a dog")
	for _, span := range correct {
		if span.Emphasized && span.Text != "have" {
			t.Fatalf("unexpected emphasized span %q", span.Text)
		}
		if !span.Emphasized && span.Text == "have" {
			t.Fatal("expected 'have' to be emphasized")
		}
	}
}

func TestParseEmphasisNoMarkers(t *testing.T) {
	got := ParseEmphasis("plain sentence")
	want := []Span{{Text: "plain sentence"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestParseEmphasisUnmatchedMarker(t *testing.T) {
	got := ParseEmphasis("I *has a dog")
	want := []Span{{Text: "I *has a dog"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestParseEmphasisLeadingAndMultiple(t *testing.T) {
	got := ParseEmphasis("*He* went *to* school")
	want := []Span{
		{Text: "He", Emphasized: true},
		{Text: " went "},
		{Text: "to", Emphasized: true},
		{Text: " school"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestParseEmphasisEmpty(t *testing.T) {
	if got := ParseEmphasis(""); got != nil {
		t.Fatalf("expected nil for empty input, got %#v", got)
	}
}

func TestPlainText(t *testing.T) {
	if got := PlainText("I *have* a dog"); got != "I have a dog" {
		t.Fatalf("got %q", got)
	}
}
