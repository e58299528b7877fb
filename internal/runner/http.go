package runner

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
)

const defaultAgentTimeout = 120 * time.Second

// HTTPRunner executes a due task by handing its description to the agent
// service and returning the agent's output as the task result.
type HTTPRunner struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPRunner(cfg config.AgentConfig) *HTTPRunner {
	timeout := defaultAgentTimeout
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}
	return &HTTPRunner{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type agentRequest struct {
	TaskDescription string `json:"task_description"`
	UserID          string `json:"user_id"`
	ChannelID       string `json:"channel_id,omitempty"`
	ThreadID        string `json:"thread_id,omitempty"`
}

type agentResponse struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

func (r *HTTPRunner) Execute(ctx context.Context, description string, origin scheduler.Origin) (string, error) {
	if r.endpoint == "" {
		return "", fmt.Errorf("agent endpoint is not configured")
	}

	payload, err := sonic.Marshal(agentRequest{
		TaskDescription: description,
		UserID:          origin.UserID,
		ChannelID:       origin.ChannelID,
		ThreadID:        origin.ThreadID,
	})
	if err != nil {
		return "", fmt.Errorf("marshal agent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build agent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call agent: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read agent response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logs.CtxWarn(ctx, "[runner] agent returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
		return "", fmt.Errorf("agent returned status %d", resp.StatusCode)
	}

	var out agentResponse
	if err := sonic.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode agent response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("agent error: %s", out.Error)
	}

	return out.Output, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
