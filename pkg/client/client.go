// Package client calls a running prediction service over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/smartrail/api"
	"github.com/kilianp07/smartrail/auth"
	"github.com/kilianp07/smartrail/core/estimator"
	"github.com/kilianp07/smartrail/core/features"
	"github.com/kilianp07/smartrail/core/prediction"
)

// DefaultTimeout bounds calls other than retrain.
const DefaultTimeout = 10 * time.Second

// Error is a non-2xx answer of the service.
type Error struct {
	Status  int
	Message string
	Detail  string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("smartrail: %d %s: %s", e.Status, e.Message, e.Detail)
	}
	return fmt.Sprintf("smartrail: %d %s", e.Status, e.Message)
}

// Client is safe for concurrent use.
type Client struct {
	base string
	http *http.Client
	auth auth.HeaderSetter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithAuth attaches credentials to every request.
func WithAuth(a auth.HeaderSetter) Option { return func(c *Client) { c.auth = a } }

// New returns a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type health struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// Health reports whether the service has a live model.
func (c *Client) Health(ctx context.Context) (bool, error) {
	var out health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out, DefaultTimeout); err != nil {
		return false, err
	}
	return out.ModelLoaded, nil
}

// Predict requests one arrival prediction.
func (c *Client) Predict(ctx context.Context, req features.Request) (api.PredictResponse, error) {
	var out api.PredictResponse
	err := c.do(ctx, http.MethodPost, "/predict", req, &out, DefaultTimeout)
	return out, err
}

// BatchPredict requests predictions for several pairs.
func (c *Client) BatchPredict(ctx context.Context, reqs []features.Request) (api.BatchResponse, error) {
	var out api.BatchResponse
	err := c.do(ctx, http.MethodPost, "/batch_predict", map[string]any{"predictions": reqs}, &out, DefaultTimeout)
	return out, err
}

// Retrain asks the service to retrain. It waits for the whole run.
func (c *Client) Retrain(ctx context.Context, kind estimator.Kind, recentOnly bool) (api.RetrainResponse, error) {
	in := map[string]any{"use_recent_data_only": recentOnly}
	if kind != "" {
		in["model_type"] = kind
	}
	var out api.RetrainResponse
	err := c.do(ctx, http.MethodPost, "/retrain", in, &out, 0)
	return out, err
}

// ModelInfo returns the live model description.
func (c *Client) ModelInfo(ctx context.Context) (prediction.Info, error) {
	var out prediction.Info
	err := c.do(ctx, http.MethodGet, "/model/info", nil, &out, DefaultTimeout)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.auth != nil {
		if err := c.auth.SetAuthHeader(req); err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &Error{Status: resp.StatusCode, Message: e.Error, Detail: e.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
