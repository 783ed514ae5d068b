package chat

import (
	"fmt"
	"time"
)

// Event is anything a Room fans out to its members.
type Event interface {
	roomEvent()
}

// Message is a chat line posted to a room. It is immutable once stored.
type Message struct {
	Sender    string
	Text      string
	Timestamp time.Time
}

// Notification is an ephemeral membership change banner.
type Notification struct {
	Title       string
	Description string
}

func (Message) roomEvent()      {}
func (Notification) roomEvent() {}

// Member is a connection that can receive room events.
//
// Deliver must not block: implementations enqueue and return, reporting an
// error when the event could not be queued.
type Member interface {
	ID() string
	Deliver(Event) error
}

func joinedNotification(name string) Notification {
	return Notification{Title: name, Description: fmt.Sprintf("%s has joined", name)}
}

func leftNotification(name string) Notification {
	return Notification{Title: name, Description: fmt.Sprintf("%s has left", name)}
}
