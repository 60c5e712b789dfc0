package orchestrator

import "github.com/fyrsmithlabs/council/internal/roles"

// Redactor removes secrets from free text. It returns the scrubbed text
// and the number of secrets removed.
type Redactor interface {
	Redact(text string) (string, int)
}

// redactRequest scrubs every free-text field of req. req must already be a
// private copy.
func redactRequest(r Redactor, req Request) (Request, int) {
	if r == nil {
		return req, 0
	}

	total := 0
	scrub := func(s string) string {
		if s == "" {
			return s
		}
		out, n := r.Redact(s)
		total += n
		return out
	}

	req.Query = scrub(req.Query)
	req.Context.Industry = scrub(req.Context.Industry)
	req.Context.Budget = scrub(req.Context.Budget)
	req.Context.Timeline = scrub(req.Context.Timeline)
	for i, item := range req.Context.Requirements {
		req.Context.Requirements[i] = scrub(item)
	}
	for _, id := range roles.IDs() {
		if prompt, ok := req.Options.CustomPrompts[id]; ok {
			req.Options.CustomPrompts[id] = scrub(prompt)
		}
	}
	return req, total
}
