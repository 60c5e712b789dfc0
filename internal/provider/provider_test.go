package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), KindTimeout},
		{"net timeout", &net.OpError{Op: "read", Err: timeoutErr{}}, KindTimeout},
		{"rate limited", &StatusError{StatusCode: 429}, KindUnavailable},
		{"server error", &StatusError{StatusCode: 503}, KindUnavailable},
		{"bad request", &StatusError{StatusCode: 400}, KindRejected},
		{"unauthorized", fmt.Errorf("wrapped: %w", &StatusError{StatusCode: 401}), KindRejected},
		{"transport", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, KindUnavailable},
		{"unknown", errors.New("something odd"), KindUnavailable},
		{"empty", ErrEmptyResponse, KindUnavailable},
		{"typed passthrough", &Error{Kind: KindRejected, Err: errors.New("x")}, KindRejected},
		{"nil", nil, KindUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestResult(t *testing.T) {
	ok := Success("text", Usage{InputTokens: 3, OutputTokens: 4})
	assert.True(t, ok.OK())
	assert.Equal(t, 7, ok.Usage.Total())

	failed := Failure("openai", &StatusError{StatusCode: 500, Message: "boom"})
	assert.False(t, failed.OK())
	assert.Equal(t, KindUnavailable, failed.Err.Kind)
	assert.Equal(t, "openai", failed.Err.Provider)
	assert.Contains(t, failed.Err.Error(), "provider openai unavailable")

	var se *StatusError
	assert.ErrorAs(t, failed.Err, &se)
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(&StatusError{StatusCode: 502}))
	assert.False(t, retryable(&StatusError{StatusCode: 404}))
	assert.False(t, retryable(context.DeadlineExceeded))
	assert.False(t, retryable(context.Canceled))
}

func TestKindKnown(t *testing.T) {
	assert.True(t, KindTimeout.Known())
	assert.False(t, Kind("weird").Known())
}
