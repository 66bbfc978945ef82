package testutil

import (
	"context"
	"sync"
)

// Notification is one message captured by RecordingNotifier.
type Notification struct {
	Title string
	Body  string
}

// RecordingNotifier captures every notification it is asked to send.
// Err, when set, is returned from Send after recording.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	Err  error
}

func (n *RecordingNotifier) Send(ctx context.Context, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Notification{Title: title, Body: body})
	return n.Err
}

// Sent returns the captured notifications in order.
func (n *RecordingNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.sent...)
}
