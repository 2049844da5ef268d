package review

// Presentation is the display-ready projection of a Result. It is a pure
// transform: no mutation, no I/O.
type Presentation struct {
	CompletionLabel    string            `json:"completion_label"`
	TaskCompleted      bool              `json:"task_completed"`
	StarsFilled        int               `json:"stars_filled"`
	StarsMax           int               `json:"stars_max"`
	MetRequirements    []string          `json:"met_requirements"`
	MissedRequirements []string          `json:"missed_requirements"`
	Mistakes           []MistakeSpans    `json:"mistakes"`
	TopicsToReview     []string          `json:"topics_to_review"`
	VocabularyToLearn  []string          `json:"vocabulary_to_learn"`
}

// MistakeSpans is a mistake with its emphasis markup parsed into spans.
type MistakeSpans struct {
	Wrong   []Span `json:"wrong"`
	Correct []Span `json:"correct"`
}

const (
	labelCompleted    = "Task completed"
	labelNotCompleted = "Task not completed"
)

// Present converts a Result into its display groups. Ratings outside
// [1, MaxRating] are clamped rather than rejected; the server should never
// produce them, but a review is still renderable if it does.
func Present(r Result) Presentation {
	label := labelNotCompleted
	if r.TaskCompleted {
		label = labelCompleted
	}

	mistakes := make([]MistakeSpans, 0, len(r.Mistakes))
	for _, m := range r.Mistakes {
		mistakes = append(mistakes, MistakeSpans{
			Wrong:   ParseEmphasis(m.Wrong),
			Correct: ParseEmphasis(m.Correct),
		})
	}

	return Presentation{
		CompletionLabel:    label,
		TaskCompleted:      r.TaskCompleted,
		StarsFilled:        clampRating(r.Rating),
		StarsMax:           MaxRating,
		MetRequirements:    r.MetRequirements,
		MissedRequirements: r.MissedRequirements,
		Mistakes:           mistakes,
		TopicsToReview:     r.TopicsToReview,
		VocabularyToLearn:  r.VocabularyToLearn,
	}
}

func clampRating(rating int) int {
	if rating < 1 {
		return 1
	}
	if rating > MaxRating {
		return MaxRating
	}
	return rating
}
