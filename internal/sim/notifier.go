package sim

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Message is a delivered notification.
type Message struct {
	Channel string
	Text    string
}

// Notifier records notifications and optionally echoes them to a writer.
type Notifier struct {
	mu       sync.Mutex
	messages []Message
	out      io.Writer
	err      error
}

// NewNotifier creates a notifier echoing to out, which may be nil.
func NewNotifier(out io.Writer) *Notifier {
	return &Notifier{out: out}
}

// FailWith makes every Send return err.
func (n *Notifier) FailWith(err error) {
	n.mu.Lock()
	n.err = err
	n.mu.Unlock()
}

// Send records the message.
func (n *Notifier) Send(_ context.Context, channel, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.err != nil {
		return n.err
	}
	n.messages = append(n.messages, Message{Channel: channel, Text: message})
	if n.out != nil {
		fmt.Fprintf(n.out, "[#%s] %s\n", channel, message)
	}
	return nil
}

// Messages returns a copy of all recorded messages.
func (n *Notifier) Messages() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Message, len(n.messages))
	copy(out, n.messages)
	return out
}
