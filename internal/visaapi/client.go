// Package visaapi is the client for the backend that stores visa applications.
package visaapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"visaintake/internal/intake/encoder"
	"visaintake/internal/platform/config"
	"visaintake/internal/platform/metrics"
	"visaintake/pkg/platform/circuit"
)

const maxResponseBytes = 4 << 20

var tracer = otel.Tracer("visaintake/internal/visaapi")

// Client calls the Visa API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuit.Breaker
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBreaker replaces the circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		if b != nil {
			c.breaker = b
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New builds a client from cfg.
func New(cfg config.VisaAPIConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker: circuit.New("visa-api",
			circuit.WithFailureThreshold(cfg.FailureThreshold),
			circuit.WithSuccessThreshold(cfg.SuccessThreshold),
			circuit.WithCooldown(cfg.Cooldown),
		),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("adapter", "visaapi")
	return c
}

// CreateVisa stores a new application and returns it as the backend saved it.
func (c *Client) CreateVisa(ctx context.Context, payload *encoder.Payload) (Visa, error) {
	var v Visa
	err := c.doMultipart(ctx, "create", http.MethodPost, "/visa/create", payload, &v)
	return v, err
}

// ListVisas returns every stored application.
func (c *Client) ListVisas(ctx context.Context) ([]Visa, error) {
	var out []Visa
	err := c.do(ctx, "list", http.MethodGet, "/visa", nil, "", &out)
	return out, err
}

// GetVisaByID returns one application with its sub-travelers.
func (c *Client) GetVisaByID(ctx context.Context, id string) (Visa, error) {
	var v Visa
	err := c.do(ctx, "get", http.MethodGet, "/visa/"+url.PathEscape(id), nil, "", &v)
	return v, err
}

// UpdateVisa replaces an application. Stored documents not re-uploaded are kept.
func (c *Client) UpdateVisa(ctx context.Context, id string, payload *encoder.Payload) error {
	return c.doMultipart(ctx, "update", http.MethodPut, "/visa/"+url.PathEscape(id), payload, nil)
}

// UpdateSubTraveler replaces one sub-traveler of an application.
func (c *Client) UpdateSubTraveler(ctx context.Context, id, subID string, payload *encoder.Payload) error {
	p := "/visa/" + url.PathEscape(id) + "/sub-traveler/" + url.PathEscape(subID)
	return c.doMultipart(ctx, "update_sub_traveler", http.MethodPut, p, payload, nil)
}

// DeleteVisa removes an application.
func (c *Client) DeleteVisa(ctx context.Context, id string) error {
	return c.do(ctx, "delete", http.MethodDelete, "/visa/"+url.PathEscape(id), nil, "", nil)
}

// DeleteSubTraveler removes one sub-traveler from an application.
func (c *Client) DeleteSubTraveler(ctx context.Context, id, subID string) error {
	p := "/visa/" + url.PathEscape(id) + "/sub-traveler/" + url.PathEscape(subID)
	return c.do(ctx, "delete_sub_traveler", http.MethodDelete, p, nil, "", nil)
}

func (c *Client) doMultipart(ctx context.Context, op, method, path string, payload *encoder.Payload, out any) error {
	var body bytes.Buffer
	contentType, err := payload.WriteMultipart(&body)
	if err != nil {
		return &APIError{Category: ErrorBadData, Operation: op, Message: "encode payload", Underlying: err}
	}
	return c.do(ctx, op, method, path, &body, contentType, out)
}

func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) (err error) {
	ctx, span := tracer.Start(ctx, "visaapi."+op, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("visaapi.operation", op),
		))
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
			var ae *APIError
			if errors.As(err, &ae) {
				outcome = string(ae.Category)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		c.metrics.ObserveVisaAPI(op, outcome, time.Since(start))
		span.End()
	}()

	if !c.breaker.Allow() {
		return &APIError{Category: ErrorCircuitOpen, Operation: op, Message: "visa service temporarily unavailable"}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &APIError{Category: ErrorBadData, Operation: op, Message: "build request", Underlying: err}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure(ctx, op)
		category := ErrorOutage
		if errors.Is(err, context.DeadlineExceeded) {
			category = ErrorTimeout
		}
		return &APIError{Category: category, Operation: op, Underlying: err}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.recordFailure(ctx, op)
		return &APIError{Category: ErrorOutage, Operation: op, StatusCode: resp.StatusCode, Message: "read response", Underlying: err}
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= 300 {
		category := categoryForStatus(resp.StatusCode)
		if category == ErrorOutage || category == ErrorTimeout {
			c.recordFailure(ctx, op)
		} else {
			c.breaker.RecordSuccess()
		}
		c.logger.WarnContext(ctx, "visa api call failed",
			"operation", op,
			"status", resp.StatusCode,
			"message", env.Message,
		)
		return &APIError{Category: category, Operation: op, StatusCode: resp.StatusCode, Message: env.Message}
	}

	c.recordSuccess(ctx, op)
	if decodeErr != nil {
		return &APIError{Category: ErrorBadData, Operation: op, StatusCode: resp.StatusCode, Message: "decode envelope", Underlying: decodeErr}
	}
	if !env.Success {
		return &APIError{Category: ErrorRejected, Operation: op, StatusCode: resp.StatusCode, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &APIError{Category: ErrorBadData, Operation: op, StatusCode: resp.StatusCode, Message: "decode data", Underlying: err}
		}
	}
	return nil
}

func (c *Client) recordFailure(ctx context.Context, op string) {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "visa api circuit opened", "operation", op)
	}
}

func (c *Client) recordSuccess(ctx context.Context, op string) {
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "visa api circuit closed", "operation", op)
	}
}

// Available reports whether the breaker currently admits calls.
func (c *Client) Available() bool {
	return c.breaker.Allow()
}
