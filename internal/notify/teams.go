// Package notify delivers backup failure digests.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"msync/internal/bt"
)

// DefaultTimeout bounds a single webhook delivery.
const DefaultTimeout = 30 * time.Second

// messageCard is the legacy Office 365 connector card accepted by Teams
// incoming webhooks.
type messageCard struct {
	Type    string `json:"@type"`
	Context string `json:"@context"`
	Title   string `json:"title"`
	Text    string `json:"text"`
}

// TeamsNotifier posts a connector card to a Microsoft Teams incoming webhook.
type TeamsNotifier struct {
	httpClient *http.Client
	webhook    string
}

var _ bt.Notifier = (*TeamsNotifier)(nil)

// NewTeamsNotifier creates a notifier posting to webhook.
// If httpClient is nil, a client with DefaultTimeout is used.
func NewTeamsNotifier(webhook string, httpClient *http.Client) *TeamsNotifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &TeamsNotifier{httpClient: httpClient, webhook: webhook}
}

// Send posts title and body. Teams renders the text as markdown, where a
// single newline does not break a line, so lines are joined with a markdown
// line break.
func (n *TeamsNotifier) Send(ctx context.Context, title, body string) error {
	payload, err := json.Marshal(messageCard{
		Type:    "MessageCard",
		Context: "http://schema.org/extensions",
		Title:   title,
		Text:    markdownLines(body),
	})
	if err != nil {
		return fmt.Errorf("marshalling card: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhook, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting to webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}
	return nil
}

func markdownLines(s string) string {
	return strings.ReplaceAll(s, "\n", "  \n")
}
