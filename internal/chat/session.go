package chat

import (
	"context"
	"sync"

	"github.com/HolkerDev/rozmova-server/internal/review"
	"github.com/HolkerDev/rozmova-server/internal/transcript"
)

// Repository is the collaborator contract the session state machine drives.
// *Service satisfies it; a mobile client talks to the same shape over HTTP.
type Repository interface {
	FetchChatByID(ctx context.Context, id string) (Chat, error)
	SendMessage(ctx context.Context, chatID, text string) (SendResult, error)
	SendAudioMessage(ctx context.Context, chatID, audioPath string) (SendResult, error)
	FinishChat(ctx context.Context, chatID string) (FinishResult, error)
	GetReview(ctx context.Context, reviewID string) (review.Result, error)
	ArchiveChat(ctx context.Context, chatID string) error
}

// Player is the slice of the playback controller the session needs: audio
// must stop before the session is finished.
type Player interface {
	Stop() error
}

// SessionState is the observable snapshot of one chat screen. Err is an
// annotation on the current state, not a terminal state: re-issuing the
// failed intent retries it.
type SessionState struct {
	Loading         bool
	Chat            Chat
	Sending         bool
	Finishing       bool
	Archiving       bool
	Analyzing       bool
	ProposingFinish bool
	Review          *review.Result
	Err             error
}

// Session is the per-screen state machine. All intents use a check-and-set
// busy flag under the mutex, so a second rapid intent is rejected with
// ErrBusy deterministically instead of double-firing the repository.
type Session struct {
	repo   Repository
	player Player

	mu     sync.Mutex
	state  SessionState
	events chan Event
}

// NewSession builds a session bound to one screen. player may be nil.
func NewSession(repo Repository, player Player) *Session {
	return &Session{
		repo:   repo,
		player: player,
		state:  SessionState{Loading: true},
		events: make(chan Event, 16),
	}
}

// Events is the one-shot signal channel. Each event is delivered at most
// once; events emitted while the buffer is full are dropped, never queued
// for replay.
func (s *Session) Events() <-chan Event {
	return s.events
}

// State returns a snapshot of the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Chat.Transcript = s.state.Chat.Transcript.Clone()
	return st
}

// Load fetches the chat. On failure the session stays usable with an empty
// transcript and the error surfaced; re-calling Load retries.
func (s *Session) Load(ctx context.Context, chatID string) error {
	s.mu.Lock()
	s.state.Loading = true
	s.state.Err = nil
	s.mu.Unlock()

	c, err := s.repo.FetchChatByID(ctx, chatID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading = false
	if err != nil {
		s.state.Err = err
		s.state.Chat = Chat{ID: chatID}
		return err
	}
	s.state.Chat = c
	return nil
}

// Send submits a text message. Rejected with ErrBusy while another send or
// finish is in flight; on failure the transcript is left unchanged.
func (s *Session) Send(ctx context.Context, text string) error {
	chatID, err := s.beginSend()
	if err != nil {
		return err
	}

	res, err := s.repo.SendMessage(ctx, chatID, text)
	s.settleSend(res, err)
	return err
}

// SendAudio submits a recorded message through the same guarded path.
func (s *Session) SendAudio(ctx context.Context, audioPath string) error {
	chatID, err := s.beginSend()
	if err != nil {
		return err
	}

	res, err := s.repo.SendAudioMessage(ctx, chatID, audioPath)
	s.settleSend(res, err)
	return err
}

func (s *Session) beginSend() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Sending || s.state.Finishing {
		return "", ErrBusy
	}
	s.state.Sending = true
	s.state.Err = nil
	return s.state.Chat.ID, nil
}

func (s *Session) settleSend(res SendResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Sending = false
	if err != nil {
		s.state.Err = err
		return
	}

	s.state.Chat = res.Chat

	if res.Chat.Transcript.Len() > 1 {
		s.emit(ScrollToBottomEvent{})
	}

	if res.ShouldFinish {
		lastUser, uok := res.Chat.Transcript.LastByAuthor(transcript.AuthorUser)
		lastBot, bok := res.Chat.Transcript.LastByAuthor(transcript.AuthorBot)
		if uok && bok {
			s.state.ProposingFinish = true
			s.emit(ProposeFinishEvent{UserText: lastUser.Content, BotText: lastBot.Content})
		}
	}
}

// ConfirmFinish is the "yes" branch of the propose-finish dialog: playback
// stops, then the chat is finished. On failure the chat stays IN_PROGRESS
// and the dialog remains actionable.
func (s *Session) ConfirmFinish(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Finishing || s.state.Sending {
		s.mu.Unlock()
		return ErrBusy
	}
	s.state.Finishing = true
	s.state.Err = nil
	chatID := s.state.Chat.ID
	s.mu.Unlock()

	if s.player != nil {
		_ = s.player.Stop()
	}

	res, err := s.repo.FinishChat(ctx, chatID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Finishing = false
	if err != nil {
		s.state.Err = err
		return err
	}

	s.state.Chat = res.Chat
	s.state.ProposingFinish = false
	s.emit(ReviewReadyEvent{ReviewID: res.ReviewID})
	return nil
}

// DismissFinish is the "no" branch: the dialog goes away, nothing else
// changes.
func (s *Session) DismissFinish() {
	s.mu.Lock()
	s.state.ProposingFinish = false
	s.mu.Unlock()
}

// Archive confirms the review and leaves the chat. On failure the review
// dialog stays visible and the user may retry.
func (s *Session) Archive(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Archiving {
		s.mu.Unlock()
		return ErrBusy
	}
	s.state.Archiving = true
	s.state.Err = nil
	chatID := s.state.Chat.ID
	s.mu.Unlock()

	err := s.repo.ArchiveChat(ctx, chatID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Archiving = false
	if err != nil {
		s.state.Err = err
		return err
	}

	s.emit(CloseEvent{})
	return nil
}

// FetchReview loads the review for display.
func (s *Session) FetchReview(ctx context.Context, reviewID string) error {
	s.mu.Lock()
	if s.state.Analyzing {
		s.mu.Unlock()
		return ErrBusy
	}
	s.state.Analyzing = true
	s.state.Err = nil
	s.mu.Unlock()

	r, err := s.repo.GetReview(ctx, reviewID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Analyzing = false
	if err != nil {
		s.state.Err = err
		return err
	}
	s.state.Review = &r
	return nil
}

// emit delivers an event without blocking; a full buffer drops the event.
func (s *Session) emit(e Event) {
	select {
	case s.events <- e:
	default:
	}
}
