package notifier

import (
	"log/slog"

	"github.com/amishk599/jobpilot/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes application outcomes to the given logger as structured messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each record via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs each record with its outcome, and failures at warn level.
// Returns nil (stdout logging does not fail).
func (n *LogNotifier) Notify(records []model.ApplicationRecord) error {
	for _, r := range records {
		args := []any{
			"status", r.Status,
			"company", r.Company,
			"title", r.Title,
			"platform", r.Platform,
			"score", r.Score,
			"url", r.URL,
		}
		if r.FailureReason != "" {
			args = append(args, "reason", r.FailureReason)
		}
		if r.Status == model.StatusFailed {
			n.logger.Warn("application outcome", args...)
			continue
		}
		n.logger.Info("application outcome", args...)
	}
	return nil
}
