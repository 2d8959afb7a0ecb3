// Package llm provides the model-orchestrator capability the review
// pipeline escalates to. The pipeline treats it as optional: no client
// means semantic items stay PENDING.
package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// Client is a minimal chat capability: one system prompt, one user
// message, text out.
type Client interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// Config selects and parameterizes a provider.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float64
}

type failureClass int

const (
	failureTimeout failureClass = iota
	failureRateLimit
	failureServer
	failureClient
)

// chatWithRetry retries transient transport failures up to three
// attempts. Content-level problems (unparseable output) are the
// caller's concern; the pipeline degrades those items itself.
func chatWithRetry(ctx context.Context, call func(context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		out, err := call(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		switch classifyTransportError(err) {
		case failureTimeout, failureRateLimit, failureServer:
			if attempt < 3 {
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(backoffDelay(attempt)):
				}
				continue
			}
		case failureClient:
		}
		return "", lastErr
	}
	return "", lastErr
}

func classifyTransportError(err error) failureClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failureTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"):
		return failureRateLimit
	case strings.Contains(msg, "status code: 5") || strings.Contains(msg, "server error"):
		return failureServer
	case strings.Contains(msg, "status code: 4"):
		return failureClient
	default:
		return failureServer
	}
}

func backoffDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 1 * time.Second
	}
	return 2 * time.Second
}
