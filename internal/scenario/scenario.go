// Package scenario defines the practice scenarios a chat is bound to.
package scenario

import "time"

type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

type Type string

const (
	TypeRoleplay   Type = "ROLEPLAY"
	TypeDiscussion Type = "DISCUSSION"
)

// Scenario describes one conversation exercise: the roles both sides play
// and the instructions the learner is graded against.
type Scenario struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	UserRole     string     `json:"user_role"`
	BotRole      string     `json:"bot_role"`
	Instructions []string   `json:"instructions"`
	Difficulty   Difficulty `json:"difficulty"`
	Type         Type       `json:"type"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Filter narrows scenario queries. Zero-value fields match everything.
type Filter struct {
	Type       Type
	Difficulty Difficulty
}

// Matches reports whether the scenario satisfies the filter.
func (f Filter) Matches(s Scenario) bool {
	if f.Type != "" && s.Type != f.Type {
		return false
	}
	if f.Difficulty != "" && s.Difficulty != f.Difficulty {
		return false
	}
	return true
}
