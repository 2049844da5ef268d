package transcript

import "errors"

// ErrMessageNotFound is returned when a message id is not in the transcript.
var ErrMessageNotFound = errors.New("message not found in transcript")

// Transcript is the ordered list of messages belonging to one chat. The
// order is the order the server returned; callers must not re-sort it.
//
// Invariant: at most one message has IsPlaying set at any time. The mutators
// below are the only sanctioned way to change the flag.
type Transcript []Message

// Len returns the number of messages.
func (t Transcript) Len() int { return len(t) }

// Last returns the final message, if any.
func (t Transcript) Last() (Message, bool) {
	if len(t) == 0 {
		return Message{}, false
	}
	return t[len(t)-1], true
}

// LastByAuthor returns the most recent message written by the given author.
// Propose-finish uses this instead of positional indexing so a transcript
// ending in two bot messages still resolves the correct user message.
func (t Transcript) LastByAuthor(a Author) (Message, bool) {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].Author == a {
			return t[i], true
		}
	}
	return Message{}, false
}

// ByID returns the message with the given id.
func (t Transcript) ByID(id string) (Message, bool) {
	for _, m := range t {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// MarkPlaying sets IsPlaying on the message with the given id and clears it
// everywhere else, preserving the at-most-one-playing invariant.
func (t Transcript) MarkPlaying(id string) error {
	found := false
	for i := range t {
		t[i].IsPlaying = t[i].ID == id
		if t[i].IsPlaying {
			found = true
		}
	}
	if !found {
		return ErrMessageNotFound
	}
	return nil
}

// ClearPlaying clears IsPlaying on every message.
func (t Transcript) ClearPlaying() {
	for i := range t {
		t[i].IsPlaying = false
	}
}

// PlayingID returns the id of the currently playing message, if any.
func (t Transcript) PlayingID() (string, bool) {
	for _, m := range t {
		if m.IsPlaying {
			return m.ID, true
		}
	}
	return "", false
}

// Append adds a message to the end of the transcript.
func (t *Transcript) Append(m Message) {
	*t = append(*t, m)
}

// Clone returns a copy whose elements can be mutated independently.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	out := make(Transcript, len(t))
	copy(out, t)
	return out
}
