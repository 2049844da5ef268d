package review

import "testing"

func TestPresentCompleted(t *testing.T) {
	r := Result{
		TaskCompleted:      true,
		Rating:             4,
		MetRequirements:    []string{"Ordered a coffee"},
		MissedRequirements: []string{"Asked about opening hours"},
		Mistakes: []Mistake{
			{Wrong: "I *has* a dog", Correct: "I *have* a dog"},
		},
		TopicsToReview:    []string{"Present simple"},
		VocabularyToLearn: []string{"espresso"},
	}

	p := Present(r)
	if p.CompletionLabel != labelCompleted {
		t.Fatalf("expected completed label, got %q", p.CompletionLabel)
	}
	if p.StarsFilled != 4 || p.StarsMax != MaxRating {
		t.Fatalf("expected 4/%d stars, got %d/%d", MaxRating, p.StarsFilled, p.StarsMax)
	}
	if len(p.Mistakes) != 1 {
		t.Fatalf("expected 1 mistake, got %d", len(p.Mistakes))
	}

	emphasized := 0
	for _, span := range p.Mistakes[0].Wrong {
		if span.Emphasized {
			emphasized++
			if span.Text != "has" {
				t.Fatalf("expected 'has' emphasized, got %q", span.Text)
			}
		}
	}
	if emphasized != 1 {
		t.Fatalf("expected exactly one emphasized span, got %d", emphasized)
	}
}

func TestPresentNotCompleted(t *testing.T) {
	p := Present(Result{TaskCompleted: false, Rating: 1})
	if p.CompletionLabel != labelNotCompleted {
		t.Fatalf("expected not-completed label, got %q", p.CompletionLabel)
	}
}

func TestPresentClampsRating(t *testing.T) {
	if p := Present(Result{Rating: 9}); p.StarsFilled != MaxRating {
		t.Fatalf("expected rating clamped to %d, got %d", MaxRating, p.StarsFilled)
	}
	if p := Present(Result{Rating: 0}); p.StarsFilled != 1 {
		t.Fatalf("expected rating clamped to 1, got %d", p.StarsFilled)
	}
}
