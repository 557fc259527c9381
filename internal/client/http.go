package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClient makes the three session calls against the gateway.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a client targeting the given base URL (e.g. "http://127.0.0.1:8080").
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// StartSession sends POST /.
func (c *HTTPClient) StartSession(ctx context.Context, req StartSessionRequest) (SessionResponse, error) {
	var out SessionResponse
	err := c.do(ctx, http.MethodPost, "/", req, &out)
	return out, err
}

// GetSession sends GET /session/{sg}/{arn} with both segments escaped.
func (c *HTTPClient) GetSession(ctx context.Context, streamGroupID, arn string) (SessionResponse, error) {
	var out SessionResponse
	path := "/session/" + url.PathEscape(streamGroupID) + "/" + url.PathEscape(arn)
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// Reconnect sends POST /reconnect and returns the signal response.
func (c *HTTPClient) Reconnect(ctx context.Context, arn, signalRequest string) (string, error) {
	var out reconnectResponse
	err := c.do(ctx, http.MethodPost, "/reconnect", reconnectRequest{
		SessionIdentifier: arn,
		SignalRequest:     signalRequest,
	}, &out)
	return out.SignalResponse, err
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuth(req.Header)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		var payload struct {
			Message string `json:"message"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &payload) == nil && payload.Message != "" {
			msg = payload.Message
		}
		return &RequestError{StatusCode: resp.StatusCode, Message: msg}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) setAuth(h http.Header) {
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
}
