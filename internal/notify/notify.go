// Package notify sends run summaries to a Telegram chat. Notifications
// are optional and best-effort: failures are logged, never fatal.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/leadscout/internal/extractor"
)

// Notifier posts extraction run reports. A nil Notifier is valid and does
// nothing, so callers don't need to special-case the disabled state.
type Notifier struct {
	bot    *tgbot.Bot
	chatID int64
	log    *slog.Logger
}

// New creates a Notifier, or nil when token is empty (notifications
// disabled).
func New(token string, chatID int64, log *slog.Logger) (*Notifier, error) {
	if token == "" {
		return nil, nil
	}

	b, err := tgbot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &Notifier{
		bot:    b,
		chatID: chatID,
		log:    log.With("component", "notifier"),
	}, nil
}

// NotifyRun sends a summary of the run report. Safe to call on a nil
// receiver.
func (n *Notifier) NotifyRun(ctx context.Context, report *extractor.RunReport) {
	if n == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Extraction run %s finished\n", report.ID)
	fmt.Fprintf(&sb, "New: %d, skipped: %d\n", report.TotalNew(), report.TotalSkipped())

	if failed := report.FailedSources(); len(failed) > 0 {
		fmt.Fprintf(&sb, "Failed sources: %s\n", strings.Join(failed, ", "))
	}
	for _, res := range report.Results {
		if res.New > 0 {
			fmt.Fprintf(&sb, "- %s: %d new\n", res.Source, res.New)
		}
	}

	_, err := n.bot.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: n.chatID,
		Text:   sb.String(),
	})
	if err != nil {
		n.log.WarnContext(ctx, "Failed to send run notification", "error", err)
	}
}
