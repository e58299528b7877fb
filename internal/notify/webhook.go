package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"github.com/haru-ai/haru/internal/config"
	"github.com/haru-ai/haru/internal/pkg/logs"
	"github.com/haru-ai/haru/internal/scheduler"
	"github.com/haru-ai/haru/internal/timeparse"
)

const defaultNotifyTimeout = 15 * time.Second

// WebhookNotifier delivers task completion reports to an HTTP endpoint,
// typically a chat bridge that relays them back to the originating thread.
type WebhookNotifier struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewWebhookNotifier(cfg config.NotifyConfig) *WebhookNotifier {
	timeout := defaultNotifyTimeout
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}
	return &WebhookNotifier{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type notifyPayload struct {
	TaskID      string `json:"task_id"`
	Description string `json:"description"`
	Status      string `json:"status"`
	TriggerTime string `json:"trigger_time"`
	Result      string `json:"result,omitempty"`
	Error       string `json:"error,omitempty"`
	UserID      string `json:"user_id"`
	ChannelID   string `json:"channel_id,omitempty"`
	ThreadID    string `json:"thread_id,omitempty"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, task scheduler.Task) error {
	if n.endpoint == "" {
		logs.CtxInfo(ctx, "[notify] no endpoint configured, skipping notification for task %s", task.ID)
		return nil
	}

	payload, err := sonic.Marshal(notifyPayload{
		TaskID:      task.ID,
		Description: task.Description,
		Status:      string(task.Status),
		TriggerTime: timeparse.Format(task.TriggerAt),
		Result:      task.Result,
		Error:       task.Error,
		UserID:      task.Origin.UserID,
		ChannelID:   task.Origin.ChannelID,
		ThreadID:    task.Origin.ThreadID,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification endpoint returned status %d", resp.StatusCode)
	}

	return nil
}
