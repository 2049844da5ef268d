package chat

import "errors"

var (
	// ErrBusy is returned when an intent arrives while another one for the
	// same chat is still in flight. The caller may retry once the first
	// operation settles; nothing is queued.
	ErrBusy = errors.New("chat operation already in flight")

	// ErrChatClosed is returned when a mutation targets a chat that is no
	// longer in progress.
	ErrChatClosed = errors.New("chat is not in progress")

	// ErrEmptyMessage is returned for a blank outgoing message.
	ErrEmptyMessage = errors.New("message text is empty")

	// ErrTranscriptionUnavailable is returned for audio messages when no
	// transcriber is configured.
	ErrTranscriptionUnavailable = errors.New("audio transcription is not configured")
)
