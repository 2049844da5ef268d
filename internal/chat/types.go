package chat

import (
	"context"
	"time"

	"github.com/HolkerDev/rozmova-server/internal/review"
	"github.com/HolkerDev/rozmova-server/internal/scenario"
	"github.com/HolkerDev/rozmova-server/internal/transcribe"
	"github.com/HolkerDev/rozmova-server/internal/transcript"
)

// Status is the lifecycle state of a chat.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusFinished   Status = "FINISHED"
	StatusArchived   Status = "ARCHIVED"
)

// Chat is one scenario-bound practice conversation.
type Chat struct {
	ID         string                `json:"id"`
	ScenarioID string                `json:"scenario_id"`
	Status     Status                `json:"status"`
	CreatedAt  time.Time             `json:"created_at"`
	Transcript transcript.Transcript `json:"transcript"`
}

// SendResult is the outcome of sending a message: the authoritative updated
// chat and whether the partner thinks the exercise goal has been reached.
type SendResult struct {
	Chat         Chat `json:"chat"`
	ShouldFinish bool `json:"should_finish"`
}

// FinishResult is the outcome of finishing a chat.
type FinishResult struct {
	Chat     Chat   `json:"chat"`
	ReviewID string `json:"review_id"`
}

// Store is the persistence the service depends on. GetChat returns the chat
// with its transcript ordered by creation time; that order is authoritative
// and nothing downstream re-sorts it. AppendExchange persists a user turn
// and the bot reply as one unit: either both land or neither does.
type Store interface {
	CreateChat(c Chat) error
	GetChat(id string) (Chat, error)
	AppendMessage(chatID string, msg transcript.Message) error
	AppendExchange(chatID string, userMsg, botMsg transcript.Message) error
	SetChatStatus(chatID string, status Status) error
	ArchiveChat(id string) error
	DeleteChat(id string) error
	Chats() ([]Chat, error)
	LatestChat() (Chat, error)
	GetScenario(id string) (scenario.Scenario, error)
	SaveReview(r review.Result) error
	GetReview(id string) (review.Result, error)
	GetReviewByChat(chatID string) (review.Result, error)
}

// Partner generates the bot side of the conversation. Reply returns the bot
// text and whether the scenario goal is met (the propose-finish trigger).
type Partner interface {
	Open(ctx context.Context, sc scenario.Scenario, language string) (string, error)
	Reply(ctx context.Context, sc scenario.Scenario, language string, tr transcript.Transcript) (string, bool, error)
}

// Transcriber converts a recorded audio file into text.
type Transcriber interface {
	TranscribeFile(ctx context.Context, path, language string) (transcribe.Transcription, error)
}

// Reviewer scores a finished conversation.
type Reviewer interface {
	Review(ctx context.Context, sc scenario.Scenario, tr transcript.Transcript) (review.Result, error)
}

// EventBroadcaster pushes one-shot UI signals. Delivery is at-most-once and
// never replayed; these are animations and navigation triggers, not state.
type EventBroadcaster interface {
	BroadcastScrollToBottom(chatID string)
	BroadcastProposeFinish(chatID, userText, botText string)
	BroadcastChatClosed(chatID string)
	BroadcastReviewReady(chatID, reviewID string)
	BroadcastRefetch()
}

// Settings supplies the per-user language the partner and transcriber need.
type Settings interface {
	LearningLanguage() (string, error)
}

// Backup uploads recorded audio files to off-device storage.
type Backup interface {
	Upload(ctx context.Context, localPath, chatID string) error
}
