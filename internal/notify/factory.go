package notify

import (
	"fmt"

	"msync/internal/bt"
	"msync/internal/config"
)

// NewNotifierFromConfig creates a Notifier based on the notification config type.
// Type "none" returns a nil Notifier.
func NewNotifierFromConfig(cfg config.NotificationConfig, logger bt.Logger) (bt.Notifier, error) {
	switch cfg.Type {
	case "teams":
		if cfg.Webhook == "" {
			return nil, fmt.Errorf("teams notification requires webhook to be set")
		}
		return NewTeamsNotifier(cfg.Webhook, nil), nil
	case "log":
		return NewLogNotifier(logger), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown notification type: %s", cfg.Type)
	}
}
