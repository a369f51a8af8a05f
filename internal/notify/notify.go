package notify

import "context"

// Message is the outbound request email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Mailer delivers a Message in a single attempt. Implementations do not retry.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
