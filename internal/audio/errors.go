package audio

import "errors"

var (
	// ErrAlreadyRecording is returned by Capture.Start while a recording is
	// in progress. The first recording keeps running.
	ErrAlreadyRecording = errors.New("capture already recording")

	// ErrNotRecording is returned by Capture.Stop when nothing is recording.
	ErrNotRecording = errors.New("capture not recording")

	// ErrNoAudio is returned when a message has no audio reference to play.
	ErrNoAudio = errors.New("message has no audio")
)
