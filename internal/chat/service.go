package chat

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HolkerDev/rozmova-server/internal/review"
	"github.com/HolkerDev/rozmova-server/internal/transcript"
)

// Service coordinates message exchange and session completion for every
// chat. Per-chat intents are serialized through a single-slot in-flight
// guard: a second intent for the same chat gets ErrBusy instead of racing
// the first.
type Service struct {
	store       Store
	partner     Partner
	transcriber Transcriber
	reviewer    Reviewer
	hub         EventBroadcaster
	settings    Settings
	backup      Backup

	now func() time.Time

	mu       sync.Mutex
	inflight map[string]string
}

// NewService wires the chat orchestrator. transcriber and backup may be nil;
// audio messages are rejected and backups skipped respectively.
func NewService(store Store, partner Partner, transcriber Transcriber, reviewer Reviewer, hub EventBroadcaster, settings Settings, backup Backup) *Service {
	return &Service{
		store:       store,
		partner:     partner,
		transcriber: transcriber,
		reviewer:    reviewer,
		hub:         hub,
		settings:    settings,
		backup:      backup,
		now:         time.Now,
		inflight:    make(map[string]string),
	}
}

// begin claims the single in-flight slot for a chat.
func (s *Service) begin(chatID, op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.inflight[chatID]; ok {
		return fmt.Errorf("%w: %s", ErrBusy, current)
	}
	s.inflight[chatID] = op
	return nil
}

func (s *Service) end(chatID string) {
	s.mu.Lock()
	delete(s.inflight, chatID)
	s.mu.Unlock()
}

// StartChat creates a chat for the scenario and has the partner open the
// conversation.
func (s *Service) StartChat(ctx context.Context, scenarioID string) (Chat, error) {
	sc, err := s.store.GetScenario(scenarioID)
	if err != nil {
		return Chat{}, fmt.Errorf("get scenario %s: %w", scenarioID, err)
	}

	c := Chat{
		ID:         uuid.NewString(),
		ScenarioID: sc.ID,
		Status:     StatusInProgress,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.CreateChat(c); err != nil {
		return Chat{}, fmt.Errorf("create chat: %w", err)
	}

	language := s.learningLanguage()
	greeting, err := s.partner.Open(ctx, sc, language)
	if err != nil {
		_ = s.store.DeleteChat(c.ID)
		return Chat{}, fmt.Errorf("open conversation: %w", err)
	}

	if err := s.store.AppendMessage(c.ID, s.botMessage(greeting)); err != nil {
		return Chat{}, fmt.Errorf("append greeting: %w", err)
	}

	return s.refetch(c.ID)
}

// FetchChatByID loads a chat with its transcript.
func (s *Service) FetchChatByID(ctx context.Context, id string) (Chat, error) {
	_ = ctx
	c, err := s.store.GetChat(id)
	if err != nil {
		return Chat{}, fmt.Errorf("fetch chat %s: %w", id, err)
	}
	return c, nil
}

// SendMessage appends the user's text, obtains the partner reply, and
// returns the authoritative transcript. Nothing is persisted until the
// partner reply succeeds, so a failed send leaves the transcript unchanged.
func (s *Service) SendMessage(ctx context.Context, chatID, text string) (SendResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return SendResult{}, ErrEmptyMessage
	}

	if err := s.begin(chatID, "send"); err != nil {
		return SendResult{}, err
	}
	defer s.end(chatID)

	userMsg := s.userMessage(text, "", 0)
	return s.exchange(ctx, chatID, userMsg)
}

// SendAudioMessage transcribes the recorded file, then runs the same
// exchange as a text message. A transcription failure surfaces as a send
// error with nothing persisted.
func (s *Service) SendAudioMessage(ctx context.Context, chatID, audioPath string) (SendResult, error) {
	if s.transcriber == nil {
		return SendResult{}, ErrTranscriptionUnavailable
	}

	if err := s.begin(chatID, "send"); err != nil {
		return SendResult{}, err
	}
	defer s.end(chatID)

	tx, err := s.transcriber.TranscribeFile(ctx, audioPath, s.learningLanguage())
	if err != nil {
		return SendResult{}, fmt.Errorf("transcribe audio message: %w", err)
	}

	userMsg := s.userMessage(tx.Text, filepath.Base(audioPath), tx.Duration)
	res, err := s.exchange(ctx, chatID, userMsg)
	if err != nil {
		return SendResult{}, err
	}

	if s.backup != nil {
		go func() {
			if err := s.backup.Upload(context.Background(), audioPath, chatID); err != nil {
				log.Printf("audio backup failed for chat %s: %v", chatID, err)
			}
		}()
	}

	return res, nil
}

// exchange runs one user turn: partner reply first, then both messages are
// persisted, then the chat is re-fetched so callers always see the server
// order.
func (s *Service) exchange(ctx context.Context, chatID string, userMsg transcript.Message) (SendResult, error) {
	c, err := s.store.GetChat(chatID)
	if err != nil {
		return SendResult{}, fmt.Errorf("fetch chat %s: %w", chatID, err)
	}
	if c.Status != StatusInProgress {
		return SendResult{}, ErrChatClosed
	}

	sc, err := s.store.GetScenario(c.ScenarioID)
	if err != nil {
		return SendResult{}, fmt.Errorf("get scenario %s: %w", c.ScenarioID, err)
	}

	pending := c.Transcript.Clone()
	pending.Append(userMsg)

	replyText, shouldFinish, err := s.partner.Reply(ctx, sc, s.learningLanguage(), pending)
	if err != nil {
		return SendResult{}, fmt.Errorf("partner reply: %w", err)
	}

	if err := s.store.AppendExchange(chatID, userMsg, s.botMessage(replyText)); err != nil {
		return SendResult{}, fmt.Errorf("append exchange: %w", err)
	}

	updated, err := s.refetch(chatID)
	if err != nil {
		return SendResult{}, err
	}

	if s.hub != nil && updated.Transcript.Len() > 1 {
		s.hub.BroadcastScrollToBottom(chatID)
	}

	if shouldFinish && s.hub != nil {
		lastUser, uok := updated.Transcript.LastByAuthor(transcript.AuthorUser)
		lastBot, bok := updated.Transcript.LastByAuthor(transcript.AuthorBot)
		if uok && bok {
			s.hub.BroadcastProposeFinish(chatID, lastUser.Content, lastBot.Content)
		}
	}

	return SendResult{Chat: updated, ShouldFinish: shouldFinish}, nil
}

// FinishChat scores the conversation and marks it FINISHED. The status only
// transitions after the review is persisted; any failure leaves the chat
// IN_PROGRESS.
func (s *Service) FinishChat(ctx context.Context, chatID string) (FinishResult, error) {
	if err := s.begin(chatID, "finish"); err != nil {
		return FinishResult{}, err
	}
	defer s.end(chatID)

	c, err := s.store.GetChat(chatID)
	if err != nil {
		return FinishResult{}, fmt.Errorf("fetch chat %s: %w", chatID, err)
	}

	switch c.Status {
	case StatusFinished:
		// Finishing twice is a no-op; hand back the existing review.
		existing, err := s.store.GetReviewByChat(chatID)
		if err != nil {
			return FinishResult{}, fmt.Errorf("get review for chat %s: %w", chatID, err)
		}
		return FinishResult{Chat: c, ReviewID: existing.ID}, nil
	case StatusArchived:
		return FinishResult{}, ErrChatClosed
	}

	sc, err := s.store.GetScenario(c.ScenarioID)
	if err != nil {
		return FinishResult{}, fmt.Errorf("get scenario %s: %w", c.ScenarioID, err)
	}

	result, err := s.reviewer.Review(ctx, sc, c.Transcript)
	if err != nil {
		return FinishResult{}, fmt.Errorf("review chat %s: %w", chatID, err)
	}

	result.ID = uuid.NewString()
	result.ChatID = chatID
	result.CreatedAt = s.now().UTC()
	if err := s.store.SaveReview(result); err != nil {
		return FinishResult{}, fmt.Errorf("save review: %w", err)
	}

	if err := s.store.SetChatStatus(chatID, StatusFinished); err != nil {
		return FinishResult{}, fmt.Errorf("finish chat %s: %w", chatID, err)
	}

	if s.hub != nil {
		s.hub.BroadcastReviewReady(chatID, result.ID)
	}

	updated, err := s.refetch(chatID)
	if err != nil {
		return FinishResult{}, err
	}
	return FinishResult{Chat: updated, ReviewID: result.ID}, nil
}

// ReviewChat returns the review id for a finished chat.
func (s *Service) ReviewChat(ctx context.Context, chatID string) (string, error) {
	_ = ctx
	existing, err := s.store.GetReviewByChat(chatID)
	if err != nil {
		return "", fmt.Errorf("get review for chat %s: %w", chatID, err)
	}
	return existing.ID, nil
}

// GetReview loads a review for display.
func (s *Service) GetReview(ctx context.Context, reviewID string) (review.Result, error) {
	_ = ctx
	r, err := s.store.GetReview(reviewID)
	if err != nil {
		return review.Result{}, fmt.Errorf("get review %s: %w", reviewID, err)
	}
	return r, nil
}

// ArchiveChat removes the chat from the active list after the user confirms
// the review. Other screens are told to refetch.
func (s *Service) ArchiveChat(ctx context.Context, chatID string) error {
	_ = ctx
	if err := s.begin(chatID, "archive"); err != nil {
		return err
	}
	defer s.end(chatID)

	if err := s.store.ArchiveChat(chatID); err != nil {
		return fmt.Errorf("archive chat %s: %w", chatID, err)
	}

	if s.hub != nil {
		s.hub.BroadcastChatClosed(chatID)
		s.hub.BroadcastRefetch()
	}
	return nil
}

// DeleteChat permanently removes a chat.
func (s *Service) DeleteChat(ctx context.Context, chatID string) error {
	_ = ctx
	if err := s.store.DeleteChat(chatID); err != nil {
		return fmt.Errorf("delete chat %s: %w", chatID, err)
	}
	if s.hub != nil {
		s.hub.BroadcastRefetch()
	}
	return nil
}

// Chats lists the non-archived chats, newest first.
func (s *Service) Chats(ctx context.Context) ([]Chat, error) {
	_ = ctx
	chats, err := s.store.Chats()
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return chats, nil
}

// LatestChat returns the most recently created active chat.
func (s *Service) LatestChat(ctx context.Context) (Chat, error) {
	_ = ctx
	c, err := s.store.LatestChat()
	if err != nil {
		return Chat{}, fmt.Errorf("latest chat: %w", err)
	}
	return c, nil
}

func (s *Service) refetch(chatID string) (Chat, error) {
	c, err := s.store.GetChat(chatID)
	if err != nil {
		return Chat{}, fmt.Errorf("refetch chat %s: %w", chatID, err)
	}
	return c, nil
}

func (s *Service) learningLanguage() string {
	if s.settings == nil {
		return "en"
	}
	language, err := s.settings.LearningLanguage()
	if err != nil || strings.TrimSpace(language) == "" {
		return "en"
	}
	return language
}

func (s *Service) userMessage(text, audioRef string, duration float64) transcript.Message {
	return transcript.Message{
		ID:            uuid.NewString(),
		Author:        transcript.AuthorUser,
		Content:       text,
		AudioRef:      audioRef,
		AudioDuration: duration,
		CreatedAt:     s.now().UTC(),
	}
}

func (s *Service) botMessage(text string) transcript.Message {
	return transcript.Message{
		ID:        uuid.NewString(),
		Author:    transcript.AuthorBot,
		Content:   text,
		CreatedAt: s.now().UTC(),
	}
}
