// Package fallback defines the contract for the answerer consulted on a
// cache miss, along with wrappers that guard it.
package fallback

import (
	"context"
	"encoding/json"
	"errors"
	"net"
)

var (
	// ErrNotConfigured is carried by results from a generator without credentials.
	ErrNotConfigured = errors.New("fallback credential not configured")

	// ErrEmptyAnswer is carried by results whose response held no text.
	ErrEmptyAnswer = errors.New("fallback response carried no answer text")

	// ErrRateLimited is carried by results rejected by WithRateLimit.
	ErrRateLimited = errors.New("fallback rate limit exceeded")
)

// FailureReason says why a fallback call produced no answer.
type FailureReason int

const (
	ReasonNone FailureReason = iota
	ReasonNotConfigured
	ReasonTimeout
	ReasonTransport
	ReasonStatus
	ReasonMalformed
	ReasonUnavailable
	ReasonRateLimited
)

func (r FailureReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNotConfigured:
		return "not_configured"
	case ReasonTimeout:
		return "timeout"
	case ReasonTransport:
		return "transport"
	case ReasonStatus:
		return "status"
	case ReasonMalformed:
		return "malformed"
	case ReasonUnavailable:
		return "unavailable"
	case ReasonRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Result is either an answer (Reason == ReasonNone) or a failure with the
// underlying error kept for logging.
type Result struct {
	Answer string
	Reason FailureReason
	Err    error
}

// Ok creates a successful Result.
func Ok(answer string) Result {
	return Result{Answer: answer}
}

// Fail creates a failed Result.
func Fail(reason FailureReason, err error) Result {
	return Result{Reason: reason, Err: err}
}

// IsOk returns true if the result carries an answer.
func (r Result) IsOk() bool { return r.Reason == ReasonNone }

// Generator answers a question with a single upstream call.
// Implementations never panic on upstream failure; they return a failed Result.
type Generator interface {
	Generate(ctx context.Context, question string) Result
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, question string) Result

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, question string) Result {
	return f(ctx, question)
}

// Classify maps a client error to a failure reason. Errors that carry an
// HTTP status are recognised by the generators themselves before this is
// consulted.
func Classify(err error) FailureReason {
	if err == nil {
		return ReasonNone
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return ReasonMalformed
	}

	return ReasonTransport
}
