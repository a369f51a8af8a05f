// Package logmail is a Mailer that writes messages to the log instead of
// delivering them. It is the default backend for local development.
package logmail

import (
	"context"
	"log/slog"

	"github.com/vbonduro/viatico/internal/notify"
)

type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg notify.Message) error {
	m.logger.InfoContext(ctx, "email not delivered (log backend)",
		"to", msg.To,
		"subject", msg.Subject,
		"bytes", len(msg.HTMLBody),
	)
	m.logger.DebugContext(ctx, "email body", "html", msg.HTMLBody)
	return nil
}
