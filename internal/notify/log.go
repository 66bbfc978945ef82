package notify

import (
	"context"

	"msync/internal/bt"
)

// LogNotifier writes notifications to a logger instead of sending them.
type LogNotifier struct {
	logger bt.Logger
}

var _ bt.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger bt.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, title, body string) error {
	n.logger.Warn("notification", "title", title, "body", body)
	return nil
}
