package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrDeliveryFailed is returned when the remote sink does not accept an event.
var ErrDeliveryFailed = errors.New("remote delivery failed")

// DefaultRemoteTimeout bounds a single remote delivery
const DefaultRemoteTimeout = 3 * time.Second

// Deliverer sends an event to a remote sink. It reports the outcome and the
// caller decides what to do with a failure.
type Deliverer interface {
	Deliver(ctx context.Context, event Event) error
}

// RemoteSink POSTs events to a webhook. Each delivery is a single attempt
// bounded by the configured timeout; there is no retry.
type RemoteSink struct {
	url     string
	timeout time.Duration
	client  *resty.Client
}

// NewRemoteSink creates a sink for url. An empty token sends no Authorization header.
func NewRemoteSink(url, token string, timeout time.Duration) *RemoteSink {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &RemoteSink{url: url, timeout: timeout, client: client}
}

// URL returns the webhook address
func (s *RemoteSink) URL() string {
	return s.url
}

// Deliver makes one POST of event and wraps every failure in ErrDeliveryFailed.
func (s *RemoteSink) Deliver(ctx context.Context, event Event) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(event).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: server returned %s", ErrDeliveryFailed, resp.Status())
	}
	return nil
}
