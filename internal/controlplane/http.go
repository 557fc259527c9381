package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gamestream/streamctl/internal/session"
)

// HTTPClient calls the control plane's REST API. It is built once per
// process and shared by every gateway request.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type startStreamSessionInput struct {
	ApplicationIdentifier    string   `json:"ApplicationIdentifier"`
	Protocol                 string   `json:"Protocol"`
	SignalRequest            string   `json:"SignalRequest"`
	Locations                []string `json:"Locations,omitempty"`
	ConnectionTimeoutSeconds int      `json:"ConnectionTimeoutSeconds,omitempty"`
	UserID                   string   `json:"UserId,omitempty"`
	SharePerformanceStats    bool     `json:"SharePerformanceStats"`
}

type streamSessionOutput struct {
	Arn            string `json:"Arn"`
	Status         string `json:"Status"`
	SignalResponse string `json:"SignalResponse"`
	Location       string `json:"Location"`
}

func (o streamSessionOutput) info() session.Info {
	return session.Info{
		ARN:            o.Arn,
		Status:         session.ParseStatus(o.Status),
		SignalResponse: o.SignalResponse,
		Region:         o.Location,
	}
}

type createConnectionInput struct {
	SignalRequest string `json:"SignalRequest"`
}

type createConnectionOutput struct {
	SignalResponse string `json:"SignalResponse"`
}

func groupPath(streamGroupID string) string {
	return "/streamgroups/" + url.PathEscape(streamGroupID) + "/streamsessions"
}

func sessionPath(streamGroupID, arn string) string {
	return groupPath(streamGroupID) + "/" + url.PathEscape(arn)
}

func (c *HTTPClient) StartStreamSession(ctx context.Context, req StartRequest) (session.Info, error) {
	in := startStreamSessionInput{
		ApplicationIdentifier:    req.ApplicationID,
		Protocol:                 req.Protocol,
		SignalRequest:            req.SignalRequest,
		Locations:                req.Regions,
		ConnectionTimeoutSeconds: req.ConnectionTimeoutSeconds,
		UserID:                   req.UserID,
		SharePerformanceStats:    req.SharePerformanceStats,
	}
	var out streamSessionOutput
	if err := c.do(ctx, http.MethodPost, groupPath(req.StreamGroupID), in, &out); err != nil {
		return session.Info{}, err
	}
	return out.info(), nil
}

func (c *HTTPClient) GetStreamSession(ctx context.Context, streamGroupID, arn string) (session.Info, error) {
	var out streamSessionOutput
	if err := c.do(ctx, http.MethodGet, sessionPath(streamGroupID, arn), nil, &out); err != nil {
		return session.Info{}, err
	}
	return out.info(), nil
}

func (c *HTTPClient) CreateStreamSessionConnection(ctx context.Context, streamGroupID, arn, signalRequest string) (string, error) {
	var out createConnectionOutput
	path := sessionPath(streamGroupID, arn) + "/connections"
	if err := c.do(ctx, http.MethodPost, path, createConnectionInput{SignalRequest: signalRequest}, &out); err != nil {
		return "", err
	}
	return out.SignalResponse, nil
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
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var payload struct {
		Message  string `json:"message"`
		MessageU string `json:"Message"`
	}
	msg := strings.TrimSpace(string(data))
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Message != "" {
			msg = payload.Message
		} else if payload.MessageU != "" {
			msg = payload.MessageU
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
