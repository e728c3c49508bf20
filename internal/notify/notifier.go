// Package notify defines the downstream notification boundary. Batch
// completion summaries and operational alerts pass through a Notifier so
// downstream consumers (reporting, paging) can be swapped without touching
// the tracker.
package notify

import (
	"context"
	"fmt"

	"github.com/najicham/nba-stats-scraper-sub021/internal/logger"
	"github.com/najicham/nba-stats-scraper-sub021/internal/model"
)

// Notifier delivers batch lifecycle signals to downstream consumers.
type Notifier interface {
	// NotifyBatchFinished delivers the terminal summary for a batch. The
	// tracker guarantees this is called exactly once per batch.
	NotifyBatchFinished(ctx context.Context, summary model.BatchSummary, status model.BatchStatus)
	// NotifyAlert delivers an operational alert.
	NotifyAlert(ctx context.Context, subject, message string)
}

// LogNotifier is an implementation that only logs notifications.
type LogNotifier struct{}

// NewLogNotifier creates a new instance of LogNotifier.
func NewLogNotifier() *LogNotifier {
	logger.Infof("Notification: Initializing Log Notifier.")
	return &LogNotifier{}
}

// NotifyBatchFinished logs the terminal summary for a batch.
func (n *LogNotifier) NotifyBatchFinished(ctx context.Context, summary model.BatchSummary, status model.BatchStatus) {
	message := fmt.Sprintf(
		"Batch Notification: Batch '%s' (date: %s) finished with Status: %s. %s",
		summary.BatchID,
		summary.TargetDate,
		status,
		summary.String(),
	)

	// The summary embeds a literal '%', so it must not be used as a format string.
	if status == model.BatchStatusComplete && !summary.Degraded {
		logger.Infof("%s", message)
	} else {
		logger.Warnf("%s", message)
	}
}

// NotifyAlert logs an operational alert.
func (n *LogNotifier) NotifyAlert(ctx context.Context, subject, message string) {
	logger.Warnf("Alert [%s]: %s", subject, message)
}

var _ Notifier = (*LogNotifier)(nil)
