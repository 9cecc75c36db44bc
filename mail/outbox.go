package mail

import (
	"context"
	"sync"

	"github.com/goliatone/go-registration"
)

// Outbox keeps sent messages in memory. Useful in development and tests.
type Outbox struct {
	mu       sync.Mutex
	messages []registration.EmailMessage
	// Err, when set, is returned by Send and nothing is stored.
	Err error
}

var _ registration.EmailTransport = (*Outbox)(nil)

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Send(ctx context.Context, msg registration.EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.Err != nil {
		return o.Err
	}
	o.messages = append(o.messages, msg)
	return nil
}

// Messages returns a copy of the sent messages.
func (o *Outbox) Messages() []registration.EmailMessage {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]registration.EmailMessage, len(o.messages))
	copy(out, o.messages)
	return out
}

// Len returns the number of sent messages.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.messages)
}

// Reset drops all messages.
func (o *Outbox) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = nil
}
