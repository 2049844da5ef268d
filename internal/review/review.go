package review

import "time"

// MaxRating is the canonical rating scale. Every surface renders ratings out
// of this single constant.
const MaxRating = 5

// Mistake pairs what the learner said with the corrected form. Both sides
// may carry *...* emphasis markup around the part that changed.
type Mistake struct {
	Wrong   string `json:"wrong"`
	Correct string `json:"correct"`
}

// Result is the scored outcome of a finished chat. Computed once after the
// chat is finished and immutable afterwards.
type Result struct {
	ID                 string    `json:"id"`
	ChatID             string    `json:"chat_id"`
	TaskCompleted      bool      `json:"task_completed"`
	Rating             int       `json:"rating"`
	MetRequirements    []string  `json:"met_requirements"`
	MissedRequirements []string  `json:"missed_requirements"`
	Mistakes           []Mistake `json:"mistakes"`
	TopicsToReview     []string  `json:"topics_to_review"`
	VocabularyToLearn  []string  `json:"vocabulary_to_learn"`
	CreatedAt          time.Time `json:"created_at"`
}
