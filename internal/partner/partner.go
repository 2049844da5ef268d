// Package partner generates the bot side of a practice conversation.
package partner

import (
	"context"
	"fmt"
	"strings"

	"github.com/HolkerDev/rozmova-server/internal/llm"
	"github.com/HolkerDev/rozmova-server/internal/scenario"
	"github.com/HolkerDev/rozmova-server/internal/transcript"
)

// finishMarker is the token the model appends once the scenario goal is
// met. It is stripped from the reply before it reaches the transcript.
const finishMarker = "[FINISH]"

// defaultMaxTurns caps a conversation regardless of the model's judgment.
const defaultMaxTurns = 20

// Partner drives an LLM as the learner's conversation counterpart.
type Partner struct {
	client   llm.Client
	maxTurns int
}

// New builds a partner. maxTurns <= 0 selects the default cap.
func New(client llm.Client, maxTurns int) *Partner {
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	return &Partner{client: client, maxTurns: maxTurns}
}

// Open produces the in-character greeting that starts a chat.
func (p *Partner) Open(ctx context.Context, sc scenario.Scenario, language string) (string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt(sc, language)},
		{Role: llm.RoleUser, Content: "Begin the conversation with a short in-character greeting."},
	}

	reply, err := p.client.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("partner greeting: %w", err)
	}
	reply, _ = stripFinishMarker(reply)
	return reply, nil
}

// Reply continues the conversation and reports whether the session should
// be proposed for finishing: either the model signals the goal is met or
// the turn cap is reached.
func (p *Partner) Reply(ctx context.Context, sc scenario.Scenario, language string, tr transcript.Transcript) (string, bool, error) {
	messages := make([]llm.Message, 0, tr.Len()+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt(sc, language)})

	userTurns := 0
	for _, m := range tr {
		role := llm.RoleAssistant
		if m.Author == transcript.AuthorUser {
			role = llm.RoleUser
			userTurns++
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Content})
	}

	reply, err := p.client.Complete(ctx, messages)
	if err != nil {
		return "", false, fmt.Errorf("partner reply: %w", err)
	}

	reply, goalMet := stripFinishMarker(reply)
	shouldFinish := goalMet || userTurns >= p.maxTurns
	return reply, shouldFinish, nil
}

func systemPrompt(sc scenario.Scenario, language string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a conversation partner helping someone practice %s.\n", language)
	fmt.Fprintf(&b, "Scenario: %s. %s\n", sc.Title, sc.Description)
	if sc.BotRole != "" {
		fmt.Fprintf(&b, "You play: %s.\n", sc.BotRole)
	}
	if sc.UserRole != "" {
		fmt.Fprintf(&b, "The learner plays: %s.\n", sc.UserRole)
	}
	if len(sc.Instructions) > 0 {
		b.WriteString("The learner is expected to:\n")
		for _, ins := range sc.Instructions {
			fmt.Fprintf(&b, "- %s\n", ins)
		}
	}
	fmt.Fprintf(&b, "Difficulty: %s. Keep replies short and natural, always in %s.\n", sc.Difficulty, language)
	fmt.Fprintf(&b, "Stay in character. When the learner has accomplished the scenario goal, end your reply with %s.", finishMarker)
	return b.String()
}

func stripFinishMarker(reply string) (string, bool) {
	if !strings.Contains(reply, finishMarker) {
		return strings.TrimSpace(reply), false
	}
	return strings.TrimSpace(strings.ReplaceAll(reply, finishMarker, "")), true
}
