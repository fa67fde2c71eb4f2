package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type header struct {
	key, value string
}

func bearer(credential string) header { return header{"Authorization", "Bearer " + credential} }

// postJSON sends body as JSON and decodes the response into out.
func postJSON(ctx context.Context, client *http.Client, provider, endpoint string, body any, out any, headers ...header) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return transportError(provider, fmt.Errorf("marshal request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return transportError(provider, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	return do(client, provider, req, out, headers)
}

// getJSON issues a GET and decodes the response into out.
func getJSON(ctx context.Context, client *http.Client, provider, endpoint string, out any, headers ...header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return transportError(provider, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	return do(client, provider, req, out, headers)
}

// getText issues a GET and returns the raw body.
func getText(ctx context.Context, client *http.Client, provider, endpoint string, headers ...header) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", transportError(provider, fmt.Errorf("create request: %w", err))
	}
	for _, h := range headers {
		req.Header.Set(h.key, h.value)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", transportError(provider, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", transportError(provider, fmt.Errorf("Status %d", resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError(provider, fmt.Errorf("read body: %w", err))
	}
	return string(body), nil
}

func do(client *http.Client, provider string, req *http.Request, out any, headers []header) error {
	for _, h := range headers {
		req.Header.Set(h.key, h.value)
	}
	resp, err := client.Do(req)
	if err != nil {
		return transportError(provider, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return transportError(provider, fmt.Errorf("Status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return parseError(provider, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
