package pathstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client communicates with the pathstore HTTP API. Every call is idempotent,
// so transient failures are retried with jittered backoff.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	// MaxRetries is the number of attempts per call (at least one).
	MaxRetries int
	// Backoff returns the wait before retry attempt n (0-indexed).
	Backoff func(attempt int) time.Duration
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		MaxRetries: DefaultMaxRetries,
		Backoff:    Backoff,
	}
}

// NodeRequest is the body for PUT /kv/{key}.
type NodeRequest struct {
	Value      any     `json:"value"`
	MergeMode  string  `json:"merge_mode,omitempty"`
	MemoryType string  `json:"memory_type,omitempty"`
	Salience   float64 `json:"salience,omitempty"`
	Source     string  `json:"source,omitempty"`
}

// NodeResponse is the response from GET /kv/{key}.
type NodeResponse struct {
	Key   string          `json:"key_path"`
	Value json.RawMessage `json:"value"`
}

// Decode unmarshals the node value into v.
func (n *NodeResponse) Decode(v any) error {
	if err := json.Unmarshal(n.Value, v); err != nil {
		return fmt.Errorf("decode node %s: %w", n.Key, err)
	}
	return nil
}

// StatusError is returned for unexpected HTTP status codes.
type StatusError struct {
	Op     string
	Key    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Op, e.Key, e.Status, e.Body)
}

// PutNode stores or updates a node at the given path.
func (c *Client) PutNode(ctx context.Context, key string, req NodeRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal node: %w", err)
	}
	return c.retry(ctx, func() error {
		resp, err := c.send(ctx, http.MethodPut, c.baseURL+"/kv/"+key, body)
		if err != nil {
			return fmt.Errorf("put node: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return statusError("put node", key, resp)
		}
		return nil
	})
}

// GetNode retrieves a node by key. A missing node returns (nil, nil).
func (c *Client) GetNode(ctx context.Context, key string) (*NodeResponse, error) {
	var node *NodeResponse
	err := c.retry(ctx, func() error {
		resp, err := c.send(ctx, http.MethodGet, c.baseURL+"/kv/"+key, nil)
		if err != nil {
			return fmt.Errorf("get node: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			node = nil
			return nil
		}
		if resp.StatusCode != http.StatusOK {
			return statusError("get node", key, resp)
		}

		var n NodeResponse
		if err := json.NewDecoder(resp.Body).Decode(&n); err != nil {
			return fmt.Errorf("decode node: %w", err)
		}
		node = &n
		return nil
	})
	return node, err
}

// DeleteNode deletes a node and optionally its children. Deleting a missing
// node is not an error.
func (c *Client) DeleteNode(ctx context.Context, key string, recursive bool) error {
	u := c.baseURL + "/kv/" + key
	if recursive {
		u += "?children=true"
	}
	return c.retry(ctx, func() error {
		resp, err := c.send(ctx, http.MethodDelete, u, nil)
		if err != nil {
			return fmt.Errorf("delete node: %w", err)
		}
		defer resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
			return nil
		}
		return statusError("delete node", key, resp)
	})
}

// ListChildrenResponse is a single node from a prefix scan.
type ListChildrenResponse struct {
	Key   string          `json:"key_path"`
	Value json.RawMessage `json:"value"`
}

// ListChildren does a prefix scan under the given key.
func (c *Client) ListChildren(ctx context.Context, key string, limit int) ([]ListChildrenResponse, error) {
	u := c.baseURL + "/kv/" + key + "/*"
	if limit > 0 {
		u += "?limit=" + url.QueryEscape(fmt.Sprintf("%d", limit))
	}
	var nodes []ListChildrenResponse
	err := c.retry(ctx, func() error {
		resp, err := c.send(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("list children: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return statusError("list children", key, resp)
		}

		var result struct {
			Nodes []ListChildrenResponse `json:"nodes"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("decode children: %w", err)
		}
		nodes = result.Nodes
		return nil
	})
	return nodes, err
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) send(ctx context.Context, method, u string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return c.httpClient.Do(req)
}

func statusError(op, key string, resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &StatusError{Op: op, Key: key, Status: resp.StatusCode, Body: string(respBody)}
}
