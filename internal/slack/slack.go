// Package slack posts feedback notifications to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/presentable/presentable/internal/webhook"
)

// Client sends Slack notifications via an incoming webhook.
type Client struct {
	webhookURL string
	http       *http.Client
}

func New(webhookURL string) *Client {
	return &Client{
		webhookURL: webhookURL,
		http:       &http.Client{Timeout: 10 * time.Second},
	}
}

type block struct {
	Type     string `json:"type"`
	Text     *text  `json:"text,omitempty"`
	Elements []text `json:"elements,omitempty"`
}

type text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type payload struct {
	Blocks []block `json:"blocks"`
}

func (c *Client) Enabled() bool {
	return c != nil && c.webhookURL != ""
}

// Dispatch renders event as a Slack message. Events other than new feedback
// are ignored.
func (c *Client) Dispatch(ctx context.Context, event webhook.Event) error {
	if !c.Enabled() || event.Name != webhook.EventFeedbackCreated {
		return nil
	}
	return c.postMessage(ctx, feedbackMessage(event))
}

func feedbackMessage(event webhook.Event) payload {
	url, _ := event.Data["url"].(string)

	refs := 0
	switch n := event.Data["references"].(type) {
	case int:
		refs = n
	case float64:
		refs = int(n)
	}
	detail := "No timestamp references"
	if refs == 1 {
		detail = "1 timestamp reference"
	} else if refs > 1 {
		detail = fmt.Sprintf("%d timestamp references", refs)
	}

	return payload{
		Blocks: []block{
			{
				Type: "section",
				Text: &text{
					Type: "mrkdwn",
					Text: fmt.Sprintf(":speech_balloon: *New feedback on a presentation*\n<%s|Open feedback>", url),
				},
			},
			{
				Type:     "context",
				Elements: []text{{Type: "mrkdwn", Text: detail}},
			},
		},
	}
}

func (c *Client) postMessage(ctx context.Context, p payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send slack message: %w", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}
