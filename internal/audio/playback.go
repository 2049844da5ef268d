package audio

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/HolkerDev/rozmova-server/internal/transcript"
)

// Player is the platform media player the controller drives. Play loads the
// source (a local path or a remote URL) and starts playback.
type Player interface {
	Play(source string) error
	Stop() error
}

// Playback enforces the at-most-one-playing contract over a transcript:
// starting a message stops whatever was playing, and both an explicit Stop
// and natural end-of-track clear every playing flag.
//
// Wire OnComplete to the device's end-of-playback callback exactly once per
// controller; duplicate listeners fire redundant (if idempotent) clears.
type Playback struct {
	audioDir string
	dev      Player

	mu        sync.Mutex
	playingID string
	tr        transcript.Transcript
}

// NewPlayback builds a playback controller resolving user recordings under
// audioDir.
func NewPlayback(audioDir string, dev Player) *Playback {
	return &Playback{audioDir: audioDir, dev: dev}
}

// Play starts playback of the given message, stopping any current playback
// first. The transcript's playing flags are updated only after the device
// accepts the source.
func (p *Playback) Play(tr transcript.Transcript, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	msg, ok := tr.ByID(messageID)
	if !ok {
		return transcript.ErrMessageNotFound
	}

	source, err := p.resolveSource(msg)
	if err != nil {
		return err
	}

	if p.playingID != "" {
		if err := p.dev.Stop(); err != nil {
			return fmt.Errorf("stop current playback: %w", err)
		}
		p.tr.ClearPlaying()
		p.playingID = ""
	}

	if err := p.dev.Play(source); err != nil {
		return fmt.Errorf("start playback: %w", err)
	}

	if err := tr.MarkPlaying(messageID); err != nil {
		return err
	}
	p.tr = tr
	p.playingID = messageID
	return nil
}

// Stop halts playback and clears every playing flag.
func (p *Playback) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.playingID == "" {
		return nil
	}

	err := p.dev.Stop()
	p.tr.ClearPlaying()
	p.playingID = ""
	p.tr = nil
	if err != nil {
		return fmt.Errorf("stop playback: %w", err)
	}
	return nil
}

// OnComplete handles the device reaching the natural end of the track.
func (p *Playback) OnComplete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tr.ClearPlaying()
	p.playingID = ""
	p.tr = nil
}

// PlayingID returns the id of the message being played, if any.
func (p *Playback) PlayingID() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playingID, p.playingID != ""
}

// resolveSource maps a message to a playable source: user recordings live as
// local files named by their audio reference, bot audio is fetched from the
// URL the server returned.
func (p *Playback) resolveSource(msg transcript.Message) (string, error) {
	if !msg.HasAudio() {
		return "", ErrNoAudio
	}

	if msg.Author == transcript.AuthorUser {
		return filepath.Join(p.audioDir, filepath.Base(msg.AudioRef)), nil
	}

	if !strings.HasPrefix(msg.AudioRef, "http://") && !strings.HasPrefix(msg.AudioRef, "https://") {
		return "", fmt.Errorf("bot message %s has non-URL audio reference %q", msg.ID, msg.AudioRef)
	}
	return msg.AudioRef, nil
}
