// Package provider defines the capability boundary the orchestrator calls to
// obtain role analyses, plus the concrete backends behind it.
//
// A Provider never returns a Go error. Every call yields a Result that is
// either a success carrying text and token usage or a typed failure. The
// orchestrator branches on Result.OK and substitutes its own fallback; no
// provider implements fallback logic itself.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/fyrsmithlabs/council/internal/roles"
)

// Kind classifies a provider failure.
type Kind string

const (
	KindUnavailable Kind = "unavailable"
	KindTimeout     Kind = "timeout"
	KindRejected    Kind = "rejected"
)

// Known reports whether k is one of the defined failure kinds.
func (k Kind) Known() bool {
	switch k {
	case KindUnavailable, KindTimeout, KindRejected:
		return true
	}
	return false
}

// Request is one role analysis call.
type Request struct {
	Role    roles.ID
	Prompt  string
	Context string
}

// Usage is the token usage a backend reported. Zero means unreported.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Error is a typed provider failure.
type Error struct {
	Kind     Kind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Result is the outcome of Provider.Analyze.
type Result struct {
	Text  string
	Usage Usage
	Err   *Error
}

// OK reports whether the call produced usable text.
func (r Result) OK() bool {
	return r.Err == nil
}

// Success builds a successful result.
func Success(text string, usage Usage) Result {
	return Result{Text: text, Usage: usage}
}

// Failure builds a failed result, classifying err.
func Failure(provider string, err error) Result {
	return Result{Err: &Error{Kind: Classify(err), Provider: provider, Err: err}}
}

// Provider produces analysis text for a role. Implementations must be safe
// for concurrent use.
type Provider interface {
	Name() string
	Analyze(ctx context.Context, req Request) Result
}

// StatusError is a non-2xx response from an HTTP backend.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// ErrEmptyResponse is returned when a backend answers without any text.
var ErrEmptyResponse = errors.New("empty response from API")

// Classify maps an error onto a failure kind.
//
// Deadlines become timeouts; rate limiting, server errors and transport
// failures become unavailable; other 4xx responses are rejections. Anything
// unrecognized is treated as unavailable.
func Classify(err error) Kind {
	if err == nil {
		return KindUnavailable
	}

	var pe *Error
	if errors.As(err, &pe) && pe.Kind.Known() {
		return pe.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusTooManyRequests, se.StatusCode >= 500:
			return KindUnavailable
		case se.StatusCode >= 400:
			return KindRejected
		}
		return KindUnavailable
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}

	return KindUnavailable
}

// retryable reports whether a failed call may succeed if repeated.
func retryable(err error) bool {
	return !errors.Is(err, context.Canceled) && Classify(err) == KindUnavailable
}
