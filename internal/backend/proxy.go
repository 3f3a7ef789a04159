package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/finpulse/aicomply/internal/domain"
)

// Proxy is a Backend speaking a chat-completions style JSON protocol to
// an LLM gateway. Transient failures are retried by the underlying
// client; a timeout surfaces as domain.ErrBackendTimeout so callers can
// distinguish it from a non-terminating conversation.
type Proxy struct {
	baseURL string
	apiKey  string
	client  *retryablehttp.Client
}

// NewProxy creates a proxy backend for the given gateway.
func NewProxy(baseURL, apiKey string, timeout time.Duration, retryMax int) *Proxy {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.HTTPClient.Timeout = timeout
	client.Logger = nil
	return &Proxy{baseURL: baseURL, apiKey: apiKey, client: client}
}

type proxyTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

type proxyRequest struct {
	Transcript *domain.Transcript `json:"transcript"`
	Tools      []proxyTool        `json:"tools"`
}

type proxyToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type proxyResponse struct {
	Final     string          `json:"final,omitempty"`
	ToolCalls []proxyToolCall `json:"tool_calls,omitempty"`
}

// Send posts the transcript and tool menu to the gateway.
func (p *Proxy) Send(ctx context.Context, transcript *domain.Transcript, tools []domain.ToolDefinition) (*Reply, error) {
	menu := make([]proxyTool, len(tools))
	for i, t := range tools {
		menu[i] = proxyTool{Name: t.Name, Description: t.Description, InputSchema: t.Schema}
	}

	body, err := json.Marshal(proxyRequest{Transcript: transcript, Tools: menu})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal backend request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/respond", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build backend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend returned status %d: %w", resp.StatusCode, domain.ErrBackendUnavailable)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read backend response: %w", domain.ErrBackendUnavailable)
	}

	var pr proxyResponse
	if err := json.Unmarshal(data, &pr); err != nil {
		return nil, fmt.Errorf("failed to decode backend response: %w", domain.ErrBackendUnavailable)
	}

	reply := &Reply{Final: pr.Final}
	for _, tc := range pr.ToolCalls {
		id := tc.ID
		if id == "" {
			id = NewInvocationID()
		}
		reply.Invocations = append(reply.Invocations, domain.ToolInvocation{
			InvocationID: id,
			Name:         tc.Name,
			Args:         tc.Args,
		})
	}
	return reply, nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("backend call: %w", domain.ErrBackendTimeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("backend call: %w", domain.ErrBackendTimeout)
	}
	return fmt.Errorf("backend call: %v: %w", err, domain.ErrBackendUnavailable)
}
