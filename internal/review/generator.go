package review

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/HolkerDev/rozmova-server/internal/llm"
	"github.com/HolkerDev/rozmova-server/internal/scenario"
	"github.com/HolkerDev/rozmova-server/internal/transcript"
)

// Generator scores a finished conversation with an LLM. Transient provider
// failures are retried with backoff before the finish operation is failed.
type Generator struct {
	client llm.Client
	sleep  func(time.Duration)
}

// NewGenerator builds a reviewer over the given completion client.
func NewGenerator(client llm.Client) *Generator {
	return &Generator{client: client, sleep: time.Sleep}
}

type reviewPayload struct {
	TaskCompleted      bool      `json:"task_completed"`
	Rating             int       `json:"rating"`
	MetRequirements    []string  `json:"met_requirements"`
	MissedRequirements []string  `json:"missed_requirements"`
	Mistakes           []Mistake `json:"mistakes"`
	TopicsToReview     []string  `json:"topics_to_review"`
	VocabularyToLearn  []string  `json:"vocabulary_to_learn"`
}

// Review scores the transcript against the scenario instructions.
func (g *Generator) Review(ctx context.Context, sc scenario.Scenario, tr transcript.Transcript) (Result, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: reviewSystemPrompt(sc)},
		{Role: llm.RoleUser, Content: formatTranscript(tr)},
	}

	backoff := []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second}
	var lastErr error
	for attempt := range backoff {
		raw, err := g.client.Complete(ctx, messages)
		if err == nil {
			result, perr := parsePayload(raw)
			if perr == nil {
				return result, nil
			}
			err = perr
		}
		lastErr = err
		if attempt < len(backoff)-1 {
			g.sleep(backoff[attempt])
		}
	}
	return Result{}, fmt.Errorf("review failed after retries: %w", lastErr)
}

func parsePayload(raw string) (Result, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var payload reviewPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		return Result{}, fmt.Errorf("parse review payload: %w", err)
	}

	rating := payload.Rating
	if rating < 1 {
		rating = 1
	}
	if rating > MaxRating {
		rating = MaxRating
	}

	return Result{
		TaskCompleted:      payload.TaskCompleted,
		Rating:             rating,
		MetRequirements:    payload.MetRequirements,
		MissedRequirements: payload.MissedRequirements,
		Mistakes:           payload.Mistakes,
		TopicsToReview:     payload.TopicsToReview,
		VocabularyToLearn:  payload.VocabularyToLearn,
	}, nil
}

func reviewSystemPrompt(sc scenario.Scenario) string {
	var b strings.Builder
	b.WriteString("You grade a language-practice conversation. Respond with JSON only, no prose, using keys: ")
	b.WriteString(`task_completed (bool), rating (1-`)
	fmt.Fprintf(&b, "%d", MaxRating)
	b.WriteString(`), met_requirements, missed_requirements, mistakes (objects with wrong/correct), topics_to_review, vocabulary_to_learn.`)
	b.WriteString(" In mistakes, wrap the changed words in *asterisks* on both sides.\n")
	fmt.Fprintf(&b, "Scenario: %s. %s\n", sc.Title, sc.Description)
	if len(sc.Instructions) > 0 {
		b.WriteString("The learner was expected to:\n")
		for _, ins := range sc.Instructions {
			fmt.Fprintf(&b, "- %s\n", ins)
		}
	}
	return b.String()
}

func formatTranscript(tr transcript.Transcript) string {
	var b strings.Builder
	for _, m := range tr {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", m.Author, m.Content)
	}
	return b.String()
}
