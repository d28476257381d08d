// Package notifier defines the fire-and-forget notification sink the
// engine calls out to; the production transport (Telegram or otherwise)
// is external (spec §2, §6 notify).
package notifier

import (
	"context"

	"go.uber.org/zap"
)

// Notifier is a single-method interface so strategies depend on an
// abstraction, not a concrete transport.
type Notifier interface {
	Notify(ctx context.Context, htmlMessage string) error
}

// LogNotifier is the default Notifier: it logs the message instead of
// sending it anywhere, standing in for the out-of-scope Telegram sink.
type LogNotifier struct {
	log *zap.SugaredLogger
}

func NewLogNotifier(log *zap.SugaredLogger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, htmlMessage string) error {
	n.log.Infow("notify", "message", htmlMessage)
	return nil
}
