package chat

// Event is a one-shot session signal. Events are delivered at most once and
// never replayed to a late subscriber, because they stand for one-time UI
// actions (scroll animation, dialog, navigation) that must not re-fire when
// state is re-read.
type Event interface {
	event()
}

// ScrollToBottomEvent asks the UI to scroll to the newest message.
type ScrollToBottomEvent struct{}

// ProposeFinishEvent asks the user whether to end the session, carrying the
// closing exchange for the dialog.
type ProposeFinishEvent struct {
	UserText string
	BotText  string
}

// CloseEvent tells the UI to navigate away from the chat.
type CloseEvent struct{}

// ReviewReadyEvent announces that the finished chat's review can be fetched.
type ReviewReadyEvent struct {
	ReviewID string
}

func (ScrollToBottomEvent) event() {}
func (ProposeFinishEvent) event()  {}
func (CloseEvent) event()          {}
func (ReviewReadyEvent) event()    {}
