package transcript

import (
	"strings"
	"time"
)

// Author identifies who produced a message.
type Author string

const (
	AuthorUser Author = "USER"
	AuthorBot  Author = "BOT"
)

// Message is one entry in a chat transcript. Content holds the text of the
// message, or the transcription when the message was spoken. AudioRef is a
// local file name for user recordings and a remote URL for bot audio.
// Messages are immutable once created; IsPlaying is presentation state owned
// by the playback controller and is never persisted.
type Message struct {
	ID            string    `json:"id"`
	Author        Author    `json:"author"`
	Content       string    `json:"content"`
	AudioRef      string    `json:"audio_ref,omitempty"`
	AudioDuration float64   `json:"audio_duration,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	IsPlaying     bool      `json:"is_playing,omitempty"`
}

// HasAudio reports whether the message carries an audio reference.
func (m Message) HasAudio() bool {
	return strings.TrimSpace(m.AudioRef) != ""
}
