package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandrodnm/poolbid/internal/ports"
)

const discordTimeout = 5 * time.Second

// Discord posts operator alerts to a Discord webhook as
// "@here [topic]: message".
type Discord struct {
	hook string
	http *http.Client
}

var _ ports.Notifier = (*Discord)(nil)

// NewDiscord returns a notifier for hook. An empty hook disables delivery.
func NewDiscord(hook string) *Discord {
	return &Discord{hook: hook, http: &http.Client{Timeout: discordTimeout}}
}

// Notify sends the alert. Delivery failures are logged and returned; callers
// treat them as best-effort.
func (d *Discord) Notify(ctx context.Context, topic, message string) error {
	if d.hook == "" {
		return nil
	}

	body, _ := json.Marshal(map[string]string{"content": FormatAlert(topic, message)})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.hook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify.Discord: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		slog.Error("notify: discord delivery failed", "err", err)
		return fmt.Errorf("notify.Discord: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		slog.Error("notify: discord delivery failed", "status", resp.StatusCode)
		return fmt.Errorf("notify.Discord: status %d", resp.StatusCode)
	}
	return nil
}

// FormatAlert renders an alert the way operators expect it in the channel.
func FormatAlert(topic, message string) string {
	return fmt.Sprintf("@here [%s]: %s", topic, message)
}
