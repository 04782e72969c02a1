// Package notify delivers rendered reports by email or, in dry-run, to a
// local file.
package notify

import (
	"context"
	"time"
)

// Message is one rendered report ready for delivery.
type Message struct {
	Subject string
	HTML    []byte
	Date    time.Time
}

// Mailer defines the interface for delivering a report.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}
