package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vignesh-goutham/marketsim/pkg/marketdata"
	"github.com/vignesh-goutham/marketsim/pkg/types"
)

// DiscordNotificationService handles sending notifications to Discord
type DiscordNotificationService struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// DiscordWebhookPayload represents the payload sent to Discord webhook
type DiscordWebhookPayload struct {
	Content string `json:"content"`
}

// NewDiscordNotificationService creates a new Discord notification service.
// An empty webhook URL disables it.
func NewDiscordNotificationService(webhookURL string) *DiscordNotificationService {
	return &DiscordNotificationService{
		webhookURL: webhookURL,
		enabled:    webhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// sendNotification sends a notification to Discord
func (d *DiscordNotificationService) sendNotification(ctx context.Context, message string) error {
	if !d.enabled {
		log.Debug().Msg("Discord notifications disabled (no webhook URL)")
		return nil
	}

	jsonData, err := json.Marshal(DiscordWebhookPayload{Content: message})
	if err != nil {
		return fmt.Errorf("failed to marshal Discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to build Discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Discord notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// NotifyRun sends the outcome of a simulation run
func (d *DiscordNotificationService) NotifyRun(ctx context.Context, summary types.RunSummary) error {
	if summary.Status == types.RunStatusFailed {
		return d.sendNotification(ctx, FormatFailure(summary))
	}
	return d.sendNotification(ctx, FormatComplete(summary))
}

// FormatComplete renders the message for a completed run
func FormatComplete(summary types.RunSummary) string {
	pl := summary.FinalValue.Sub(summary.StartingCash)
	header := "📈 **Simulation Complete**"
	if pl.IsNegative() {
		header = "📉 **Simulation Complete**"
	}

	return fmt.Sprintf("%s\n"+
		"Run: %s\n"+
		"Range: %s to %s (%d trading days)\n"+
		"Orders Executed: %d | Dropped: %d\n"+
		"Starting Value: $%s\n"+
		"Final Value: $%s\n"+
		"P/L: $%s",
		header, summary.RunID,
		summary.Start.Format(marketdata.DateLayout), summary.End.Format(marketdata.DateLayout), summary.Days,
		summary.Executed, summary.Dropped,
		summary.StartingCash.StringFixed(2), summary.FinalValue.StringFixed(2), pl.StringFixed(2))
}

// FormatFailure renders the message for a run stopped by a fatal error
func FormatFailure(summary types.RunSummary) string {
	kind := summary.ErrorKind
	if kind == "" {
		kind = "Error"
	}
	return fmt.Sprintf("⚠️ **Simulation Failed**\n"+
		"Run: %s\n"+
		"**%s**\n"+
		"%s\n"+
		"Completed Days: %d",
		summary.RunID, kind, summary.Error, summary.Days)
}
