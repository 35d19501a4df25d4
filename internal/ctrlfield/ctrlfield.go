// Package ctrlfield fetches the opaque control payload stamped onto every
// newly indexed photo record. The payload's contents belong to an external
// service; this package only carries the bytes.
package ctrlfield

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// FieldName is the key the control payload arrives under, and the key it is
// stored under on photo records.
const FieldName = "__ctrl"

const fetchTimeout = 10 * time.Second

// Client fetches control payloads from a configured endpoint.
type Client struct {
	url  string
	http *http.Client
}

// New returns a client for the given endpoint. An empty url disables
// fetching: Fetch then returns nil without error.
func New(url string) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: fetchTimeout},
	}
}

// Fetch retrieves the current control payload. Failures here must never
// block indexing, so callers are expected to log the error and continue with
// a nil payload.
func (c *Client) Fetch(ctx context.Context) (json.RawMessage, error) {
	if c == nil || c.url == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building control field request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching control field: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("control field endpoint returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading control field response: %w", err)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decoding control field response: %w", err)
	}
	payload, ok := envelope[FieldName]
	if !ok {
		return nil, fmt.Errorf("control field response missing %q key", FieldName)
	}
	return payload, nil
}
