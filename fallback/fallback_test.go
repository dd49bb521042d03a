package fallback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassify(t *testing.T) {
	var syntaxErr error
	syntaxErr = json.Unmarshal([]byte("{not json"), &map[string]any{})
	require.Error(t, syntaxErr)

	tests := []struct {
		name string
		err  error
		want FailureReason
	}{
		{"nil", nil, ReasonNone},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ReasonTimeout},
		{"net timeout", &net.OpError{Op: "read", Err: timeoutErr{}}, ReasonTimeout},
		{"bad json", fmt.Errorf("decode: %w", syntaxErr), ReasonMalformed},
		{"refused", errors.New("connection refused"), ReasonTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestFailureReasonString(t *testing.T) {
	assert.Equal(t, "none", ReasonNone.String())
	assert.Equal(t, "not_configured", ReasonNotConfigured.String())
	assert.Equal(t, "rate_limited", ReasonRateLimited.String())
	assert.Equal(t, "unknown", FailureReason(99).String())
}

func TestResult(t *testing.T) {
	ok := Ok("42")
	assert.True(t, ok.IsOk())
	assert.Equal(t, "42", ok.Answer)

	failed := Fail(ReasonStatus, errors.New("503"))
	assert.False(t, failed.IsOk())
	assert.Empty(t, failed.Answer)
}

func TestWithBreaker(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	calls := 0
	failing := true

	next := GeneratorFunc(func(ctx context.Context, q string) Result {
		calls++
		if failing {
			return Fail(ReasonTransport, errors.New("connection reset"))
		}
		return Ok("answer")
	})

	g := WithBreaker(next, BreakerConfig{ConsecutiveFailures: 2, Timeout: 50 * time.Millisecond, Logger: logger})
	ctx := context.Background()

	assert.Equal(t, ReasonTransport, g.Generate(ctx, "q").Reason)
	assert.Equal(t, ReasonTransport, g.Generate(ctx, "q").Reason)

	// open: upstream is not called
	res := g.Generate(ctx, "q")
	assert.Equal(t, ReasonUnavailable, res.Reason)
	assert.Equal(t, 2, calls)

	require.NotEmpty(t, hook.AllEntries())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	// half-open probe succeeds and closes the circuit
	failing = false
	time.Sleep(80 * time.Millisecond)
	assert.True(t, g.Generate(ctx, "q").IsOk())
	assert.True(t, g.Generate(ctx, "q").IsOk())
	assert.Equal(t, 4, calls)
}

func TestWithBreakerIgnoresMissingCredentials(t *testing.T) {
	next := GeneratorFunc(func(ctx context.Context, q string) Result {
		return Fail(ReasonNotConfigured, ErrNotConfigured)
	})
	g := WithBreaker(next, BreakerConfig{ConsecutiveFailures: 1, Logger: logrus.New()})

	for i := 0; i < 3; i++ {
		assert.Equal(t, ReasonNotConfigured, g.Generate(context.Background(), "q").Reason)
	}
}

func TestWithRateLimit(t *testing.T) {
	calls := 0
	next := GeneratorFunc(func(ctx context.Context, q string) Result {
		calls++
		return Ok("a")
	})

	g := WithRateLimit(next, rate.NewLimiter(rate.Every(time.Hour), 2))
	ctx := context.Background()

	assert.True(t, g.Generate(ctx, "q").IsOk())
	assert.True(t, g.Generate(ctx, "q").IsOk())

	res := g.Generate(ctx, "q")
	assert.Equal(t, ReasonRateLimited, res.Reason)
	assert.ErrorIs(t, res.Err, ErrRateLimited)
	assert.Equal(t, 2, calls)
}
