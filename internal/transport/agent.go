// Package transport performs authenticated JSON calls against the Kwik-Pik API
// and unwraps the {"result": T} envelope of successful responses.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	clientRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kwikpik_client_requests_total",
		Help: "Total Kwik-Pik API calls issued, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	clientRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kwikpik_client_request_duration_seconds",
		Help:    "Latency distribution of Kwik-Pik API calls",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "endpoint"})
)

// Options binds an Agent to an account and a deployment.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Agent issues requests against one base URL with one API key.
type Agent struct {
	baseURL string
	header  http.Header
	client  *http.Client
	log     *slog.Logger
}

func New(opts Options) *Agent {
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	header := make(http.Header)
	header.Set("Authorization", "X-API-Key "+opts.APIKey)
	header.Set("Accept", "application/json")

	return &Agent{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		header:  header,
		client:  client,
		log:     logger,
	}
}

// BaseURL returns the URL every path is resolved against.
func (a *Agent) BaseURL() string { return a.baseURL }

// Request describes one call. Template is the unexpanded path and labels metrics.
type Request struct {
	Method   string
	Path     string
	Template string
	Body     any
}

type envelope struct {
	Result json.RawMessage `json:"result"`
}

// Do performs req and decodes the envelope's result into out. Errors from the
// HTTP client are returned as is; non-2xx responses yield *StatusError.
func (a *Agent) Do(ctx context.Context, req Request, out any) error {
	endpoint := req.Template
	if endpoint == "" {
		endpoint = req.Path
	}
	timer := prometheus.NewTimer(clientRequestDuration.WithLabelValues(req.Method, endpoint))
	defer timer.ObserveDuration()

	httpReq, err := a.newRequest(ctx, req)
	if err != nil {
		return err
	}
	requestID := httpReq.Header.Get("X-Request-ID")
	start := time.Now()

	resp, err := a.client.Do(httpReq)
	if err != nil {
		clientRequestsTotal.WithLabelValues(req.Method, endpoint, "error").Inc()
		a.log.DebugContext(ctx, "kwikpik call failed",
			"method", req.Method, "path", req.Path, "request_id", requestID, "error", err)
		return err
	}
	defer resp.Body.Close()

	clientRequestsTotal.WithLabelValues(req.Method, endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	a.log.DebugContext(ctx, "kwikpik call",
		"method", req.Method, "path", req.Path, "request_id", requestID,
		"status", resp.StatusCode, "duration", time.Since(start))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: req.Method, Path: req.Path, StatusCode: resp.StatusCode, Body: body}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode %s %s response: %w", req.Method, req.Path, err)
	}
	if out == nil {
		return nil
	}
	if len(env.Result) == 0 {
		return fmt.Errorf("decode %s %s response: missing result", req.Method, req.Path)
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode %s %s result: %w", req.Method, req.Path, err)
	}
	return nil
}

func (a *Agent) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", req.Method, req.Path, err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, a.url(req.Path), body)
	if err != nil {
		return nil, err
	}
	for k, v := range a.header {
		httpReq.Header[k] = append([]string(nil), v...)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	return httpReq, nil
}

func (a *Agent) url(path string) string {
	if path == "" {
		return a.baseURL
	}
	return a.baseURL + "/" + strings.TrimLeft(path, "/")
}
