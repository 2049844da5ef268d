package audio

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/HolkerDev/rozmova-server/internal/transcript"
)

type playerMock struct {
	played  []string
	stopped int
	playErr error
}

func (p *playerMock) Play(source string) error {
	if p.playErr != nil {
		return p.playErr
	}
	p.played = append(p.played, source)
	return nil
}

func (p *playerMock) Stop() error {
	p.stopped++
	return nil
}

func audioTranscript() transcript.Transcript {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return transcript.Transcript{
		{ID: "b1", Author: transcript.AuthorBot, Content: "Hi", AudioRef: "https://cdn.example.com/b1.mp3", CreatedAt: base},
		{ID: "u1", Author: transcript.AuthorUser, Content: "Hello", AudioRef: "rec_20260301090100.m4a", CreatedAt: base.Add(time.Minute)},
	}
}

func countPlaying(tr transcript.Transcript) int {
	n := 0
	for _, m := range tr {
		if m.IsPlaying {
			n++
		}
	}
	return n
}

func TestPlayMarksSingleMessage(t *testing.T) {
	dev := &playerMock{}
	pb := NewPlayback("data/audio", dev)
	tr := audioTranscript()

	if err := pb.Play(tr, "u1"); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	if countPlaying(tr) != 1 {
		t.Fatalf("expected exactly one playing message, got %d", countPlaying(tr))
	}
	if id, _ := tr.PlayingID(); id != "u1" {
		t.Fatalf("expected u1 playing, got %s", id)
	}

	want := filepath.Join("data/audio", "rec_20260301090100.m4a")
	if dev.played[0] != want {
		t.Fatalf("expected local source %q, got %q", want, dev.played[0])
	}
}

func TestPlaySwitchStopsPrevious(t *testing.T) {
	dev := &playerMock{}
	pb := NewPlayback("data/audio", dev)
	tr := audioTranscript()

	if err := pb.Play(tr, "u1"); err != nil {
		t.Fatalf("Play u1 failed: %v", err)
	}
	if err := pb.Play(tr, "b1"); err != nil {
		t.Fatalf("Play b1 failed: %v", err)
	}

	if dev.stopped != 1 {
		t.Fatalf("expected prior playback stopped once, got %d", dev.stopped)
	}
	if countPlaying(tr) != 1 {
		t.Fatalf("expected exactly one playing message, got %d", countPlaying(tr))
	}
	if id, _ := tr.PlayingID(); id != "b1" {
		t.Fatalf("expected b1 playing, got %s", id)
	}
	if dev.played[1] != "https://cdn.example.com/b1.mp3" {
		t.Fatalf("expected remote URL source, got %q", dev.played[1])
	}
}

func TestStopClearsAllFlags(t *testing.T) {
	dev := &playerMock{}
	pb := NewPlayback("data/audio", dev)
	tr := audioTranscript()

	if err := pb.Play(tr, "b1"); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if err := pb.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if countPlaying(tr) != 0 {
		t.Fatal("expected no playing messages after Stop")
	}
	if _, ok := pb.PlayingID(); ok {
		t.Fatal("expected idle controller after Stop")
	}
}

func TestNaturalCompletionClearsAllFlags(t *testing.T) {
	dev := &playerMock{}
	pb := NewPlayback("data/audio", dev)
	tr := audioTranscript()

	if err := pb.Play(tr, "u1"); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	pb.OnComplete()

	if countPlaying(tr) != 0 {
		t.Fatal("expected no playing messages after natural completion")
	}
	if dev.stopped != 0 {
		t.Fatal("natural completion must not call the device")
	}

	// Redundant completion events are harmless.
	pb.OnComplete()
}

func TestPlayUnknownMessage(t *testing.T) {
	pb := NewPlayback("data/audio", &playerMock{})
	tr := audioTranscript()

	if err := pb.Play(tr, "missing"); !errors.Is(err, transcript.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestPlayMessageWithoutAudio(t *testing.T) {
	pb := NewPlayback("data/audio", &playerMock{})
	tr := transcript.Transcript{{ID: "t1", Author: transcript.AuthorUser, Content: "text only"}}

	if err := pb.Play(tr, "t1"); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio, got %v", err)
	}
}

func TestPlayDeviceFailureLeavesFlagsClear(t *testing.T) {
	dev := &playerMock{playErr: errors.New("decoder error")}
	pb := NewPlayback("data/audio", dev)
	tr := audioTranscript()

	if err := pb.Play(tr, "u1"); err == nil {
		t.Fatal("expected error from Play")
	}
	if countPlaying(tr) != 0 {
		t.Fatal("failed Play must not leave a playing flag")
	}
}
