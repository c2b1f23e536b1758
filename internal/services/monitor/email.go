package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/greenhouse/pkg/metrics"
)

const (
	DefaultEmailEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

	// EmailTimeLayout renders times the way the en-IN locale does.
	EmailTimeLayout = "2/1/2006, 3:04:05 pm"
)

type EmailConfig struct {
	Endpoint   string
	ServiceID  string
	TemplateID string
	UserID     string
	Timeout    time.Duration

	BreakerFailures int
	BreakerOpenFor  time.Duration
	BreakerInterval time.Duration

	Location *time.Location
}

// EmailClient posts alert e-mails to the EmailJS REST API. Sends are never
// retried; a breaker stops hammering the endpoint while it keeps failing.
type EmailClient struct {
	cfg  EmailConfig
	http *http.Client
	cb   *gobreaker.CircuitBreaker
}

type emailRequest struct {
	ServiceID      string         `json:"service_id"`
	TemplateID     string         `json:"template_id"`
	UserID         string         `json:"user_id"`
	TemplateParams templateParams `json:"template_params"`
}

type templateParams struct {
	ToEmail      string `json:"to_email"`
	AlertType    string `json:"alert_type"`
	AlertMessage string `json:"alert_message"`
	Time         string `json:"time"`
}

func mkCB(name string, fails int, openFor, interval time.Duration) *gobreaker.CircuitBreaker {
	if fails < 1 {
		fails = 1
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: interval,
		Timeout:  openFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(fails)
		},
	})
}

func NewEmailClient(cfg EmailConfig) *EmailClient {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = DefaultEmailEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = 3
	}
	if cfg.BreakerOpenFor <= 0 {
		cfg.BreakerOpenFor = time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &EmailClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		cb:   mkCB("emailjs", cfg.BreakerFailures, cfg.BreakerOpenFor, cfg.BreakerInterval),
	}
}

func (c *EmailClient) State() gobreaker.State { return c.cb.State() }

func (c *EmailClient) SendAlert(ctx context.Context, a Alert) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, c.post(ctx, a)
	})
	switch {
	case err == nil:
		metrics.EmailSendTotal.WithLabelValues("sent").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.EmailSendTotal.WithLabelValues("breaker_open").Inc()
	default:
		metrics.EmailSendTotal.WithLabelValues("failed").Inc()
	}
	return err
}

func (c *EmailClient) post(ctx context.Context, a Alert) error {
	body, err := json.Marshal(emailRequest{
		ServiceID:  c.cfg.ServiceID,
		TemplateID: c.cfg.TemplateID,
		UserID:     c.cfg.UserID,
		TemplateParams: templateParams{
			ToEmail:      a.Email,
			AlertType:    string(a.Quantity),
			AlertMessage: a.Message,
			Time:         a.At.In(c.cfg.Location).Format(EmailTimeLayout),
		},
	})
	if err != nil {
		return fmt.Errorf("encode email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("email request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("email endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
