package notify

import (
	"context"
	"log/slog"
)

// NoOpMailer implements Mailer by logging discarded reports. It is used when
// the run is not supposed to deliver anything, such as store-only mode.
type NoOpMailer struct {
	log *slog.Logger
}

// NewNoOpMailer creates a mailer that discards reports with a log message.
func NewNoOpMailer(log *slog.Logger) *NoOpMailer {
	return &NoOpMailer{log: log}
}

// Send logs and discards a report.
func (n *NoOpMailer) Send(_ context.Context, msg *Message) error {
	n.log.Debug("report discarded (no delivery configured)",
		"subject", msg.Subject,
		"bytes", len(msg.HTML),
	)
	return nil
}
