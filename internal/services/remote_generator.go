package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jwebster45206/kode-keras/pkg/scene"
)

// RemoteGenerator fetches scenes from another kode-keras API at
// POST {baseURL}/v1/scene.
type RemoteGenerator struct {
	client  *http.Client
	baseURL string
}

// NewRemoteGenerator creates a client for a remote scene endpoint.
func NewRemoteGenerator(baseURL string, timeout time.Duration) *RemoteGenerator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RemoteGenerator{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (r *RemoteGenerator) GenerateScene(ctx context.Context, req scene.Request) (json.RawMessage, error) {
	out, err := r.fetch(ctx, req)
	observeScene("remote", err)
	return out, err
}

func (r *RemoteGenerator) fetch(ctx context.Context, req scene.Request) (json.RawMessage, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/scene", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, &ErrProviderUnavailable{Err: err}
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errorResp struct {
			Error string `json:"error"`
		}
		msg := string(body)
		if json.Unmarshal(body, &errorResp) == nil && errorResp.Error != "" {
			msg = errorResp.Error
		}
		return nil, statusError(resp.StatusCode, fmt.Errorf("scene service returned status %d: %s", resp.StatusCode, msg))
	}

	// Invalid JSON is passed through; the caller normalizes it.
	return json.RawMessage(body), nil
}
