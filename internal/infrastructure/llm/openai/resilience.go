package openai

import (
	"context"
	"errors"
	"net"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/emalabs/ask-ema/internal/infrastructure/resilience"
)

// classifyOpenAIError decides whether an error counts against the circuit
// breaker. Caller cancellations and caller-side request errors do not;
// upstream 5xx, rate limits and network failures do.
func classifyOpenAIError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{RecordFailure: false}
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return resilience.ErrorClassification{RecordFailure: isUpstreamHTTPStatus(apiErr.HTTPStatusCode)}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return resilience.ErrorClassification{RecordFailure: isUpstreamHTTPStatus(reqErr.HTTPStatusCode)}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{RecordFailure: true}
	}

	return resilience.ErrorClassification{RecordFailure: true}
}

func isUpstreamHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
