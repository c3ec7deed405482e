package attendance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"qrscan/pkg/domain"
	"qrscan/pkg/platform/sentinel"
)

// DefaultBaseURL matches the backend's development address.
const DefaultBaseURL = "http://localhost:3000/api"

const maxBodyBytes = 1 << 20

var (
	ErrStudentNotFound = fmt.Errorf("student: %w", sentinel.ErrNotFound)
	ErrTokenExpired    = errors.New("attendance api token expired")
	ErrUpstream        = fmt.Errorf("attendance api: %w", sentinel.ErrUnavailable)
)

// RejectedError carries the backend's reason for refusing a registration.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return "registration rejected: " + e.Message
}

// Client talks to the attendance REST backend.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithToken sends token as a Bearer credential.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid attendance api url: %w", err)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  slog.Default(),
		tracer:  otel.Tracer("qrscan/attendance"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Validate asks whether dni belongs to a student allowed to check in.
func (c *Client) Validate(ctx context.Context, dni domain.DNI) (*Validation, error) {
	ctx, span := c.tracer.Start(ctx, "attendance.Validate")
	defer span.End()

	status, body, err := c.do(ctx, http.MethodGet, "/estudiantes/validar-qr/"+url.PathEscape(dni.String()), nil)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", status))

	switch {
	case status == http.StatusNotFound:
		return nil, ErrStudentNotFound
	case status < 200 || status > 299:
		err := fmt.Errorf("validate: status %d: %w", status, ErrUpstream)
		recordSpanError(span, err)
		return nil, err
	}

	var v Validation
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("validate: decode response: %w", ErrUpstream)
	}
	return &v, nil
}

// Register records attendance for dni.
func (c *Client) Register(ctx context.Context, dni domain.DNI) (*Registration, error) {
	ctx, span := c.tracer.Start(ctx, "attendance.Register")
	defer span.End()

	payload, err := json.Marshal(map[string]string{"dni": dni.String()})
	if err != nil {
		return nil, err
	}
	status, body, err := c.do(ctx, http.MethodPost, "/asistencias/qr", payload)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", status))

	switch {
	case status == http.StatusBadRequest:
		var rejected struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &rejected)
		if rejected.Error == "" {
			rejected.Error = "registration refused"
		}
		return nil, &RejectedError{Message: rejected.Error}
	case status < 200 || status > 299:
		err := fmt.Errorf("register: status %d: %w", status, ErrUpstream)
		recordSpanError(span, err)
		return nil, err
	}

	var reg Registration
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &reg); err != nil {
			c.logger.DebugContext(ctx, "registration response not understood", "error", err)
		}
	}
	return &reg, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	if err := c.checkToken(); err != nil {
		return 0, nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %v: %w", method, path, err, ErrUpstream)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %v: %w", err, ErrUpstream)
	}
	return resp.StatusCode, data, nil
}

// checkToken refuses to send a JWT that has already expired. Opaque tokens
// are passed through untouched.
func (c *Client) checkToken() error {
	if c.token == "" {
		return nil
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.token, &claims); err != nil {
		return nil
	}
	if claims.ExpiresAt != nil && !c.now().Before(claims.ExpiresAt.Time) {
		return ErrTokenExpired
	}
	return nil
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
