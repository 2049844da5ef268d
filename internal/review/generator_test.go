package review

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/HolkerDev/rozmova-server/internal/llm"
	"github.com/HolkerDev/rozmova-server/internal/scenario"
	"github.com/HolkerDev/rozmova-server/internal/transcript"
)

type llmMock struct {
	replies  []string
	errs     []error
	calls    int
	requests [][]llm.Message
}

func (c *llmMock) Complete(_ context.Context, messages []llm.Message) (string, error) {
	c.requests = append(c.requests, messages)
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return "", c.errs[i]
	}
	if i < len(c.replies) {
		return c.replies[i], nil
	}
	return c.replies[len(c.replies)-1], nil
}

const goodPayload = `{
	"task_completed": true,
	"rating": 4,
	"met_requirements": ["Ordered a drink"],
	"missed_requirements": ["Did not ask for the price"],
	"mistakes": [{"wrong": "I *has* a question", "correct": "I *have* a question"}],
	"topics_to_review": ["present tense"],
	"vocabulary_to_learn": ["espresso"]
}`

func sampleTranscript() transcript.Transcript {
	return transcript.Transcript{
		{Author: transcript.AuthorBot, Content: "Hi, what can I get you?"},
		{Author: transcript.AuthorUser, Content: "I has a question."},
	}
}

func TestReviewParsesPayload(t *testing.T) {
	client := &llmMock{replies: []string{goodPayload}}
	g := NewGenerator(client)

	result, err := g.Review(context.Background(), scenario.Scenario{Title: "Ordering coffee"}, sampleTranscript())
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if !result.TaskCompleted || result.Rating != 4 {
		t.Fatalf("unexpected result: completed=%v rating=%d", result.TaskCompleted, result.Rating)
	}
	if len(result.Mistakes) != 1 || result.Mistakes[0].Wrong != "I *has* a question" {
		t.Fatalf("unexpected mistakes: %+v", result.Mistakes)
	}
	if len(result.MissedRequirements) != 1 || len(result.TopicsToReview) != 1 {
		t.Fatalf("unexpected lists: %+v", result)
	}

	prompt := client.requests[0][0].Content
	if !strings.Contains(prompt, "Ordering coffee") {
		t.Fatalf("system prompt missing scenario: %q", prompt)
	}
	user := client.requests[0][1].Content
	if !strings.Contains(user, "USER: I has a question.") {
		t.Fatalf("transcript not rendered: %q", user)
	}
}

func TestReviewStripsMarkdownFences(t *testing.T) {
	client := &llmMock{replies: []string{"```json\n" + goodPayload + "\n```"}}
	g := NewGenerator(client)

	result, err := g.Review(context.Background(), scenario.Scenario{}, sampleTranscript())
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if result.Rating != 4 {
		t.Fatalf("unexpected rating %d", result.Rating)
	}
}

func TestReviewClampsRating(t *testing.T) {
	client := &llmMock{replies: []string{`{"task_completed": false, "rating": 11}`}}
	g := NewGenerator(client)

	result, err := g.Review(context.Background(), scenario.Scenario{}, sampleTranscript())
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if result.Rating != MaxRating {
		t.Fatalf("expected rating clamped to %d, got %d", MaxRating, result.Rating)
	}
}

func TestReviewRetriesTransientFailures(t *testing.T) {
	client := &llmMock{
		errs:    []error{errors.New("rate limited"), errors.New("rate limited")},
		replies: []string{"", "", goodPayload},
	}
	g := NewGenerator(client)

	var slept []time.Duration
	g.sleep = func(d time.Duration) { slept = append(slept, d) }

	result, err := g.Review(context.Background(), scenario.Scenario{}, sampleTranscript())
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if result.Rating != 4 {
		t.Fatalf("unexpected rating %d", result.Rating)
	}
	if len(slept) != 2 || slept[0] != 1*time.Second || slept[1] != 4*time.Second {
		t.Fatalf("unexpected backoff %v", slept)
	}
}

func TestReviewGivesUpAfterRetries(t *testing.T) {
	client := &llmMock{errs: []error{errors.New("down"), errors.New("down"), errors.New("down")}}
	g := NewGenerator(client)
	g.sleep = func(time.Duration) {}

	if _, err := g.Review(context.Background(), scenario.Scenario{}, sampleTranscript()); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if client.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", client.calls)
	}
}

func TestReviewRetriesMalformedPayload(t *testing.T) {
	client := &llmMock{replies: []string{"not json at all", goodPayload}}
	g := NewGenerator(client)
	g.sleep = func(time.Duration) {}

	result, err := g.Review(context.Background(), scenario.Scenario{}, sampleTranscript())
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if !result.TaskCompleted {
		t.Fatal("expected parsed result from second attempt")
	}
}
