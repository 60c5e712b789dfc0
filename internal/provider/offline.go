package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/fyrsmithlabs/council/internal/roles"
)

// NameOffline is the routing name of the built-in offline provider.
const NameOffline = "offline"

// Offline produces deterministic analyses from role strengths and the
// request text. It needs no network and never fails for known roles.
type Offline struct{}

// NewOffline creates the offline provider.
func NewOffline() *Offline {
	return &Offline{}
}

func (o *Offline) Name() string { return NameOffline }

// Analyze writes a short analysis in the role's voice.
func (o *Offline) Analyze(ctx context.Context, req Request) Result {
	if err := ctx.Err(); err != nil {
		return Failure(NameOffline, err)
	}

	role, ok := roles.Get(req.Role)
	if !ok {
		return Result{Err: &Error{Kind: KindRejected, Provider: NameOffline, Err: fmt.Errorf("unknown role %q", req.Role)}}
	}

	phase := lineValue(req.Context, "Phase:")
	if phase == "" {
		phase = "analysis"
	}
	focus := focusTerms(afterMarker(req.Prompt, "Request:"), 4)
	subject := "the request"
	if len(focus) > 0 {
		subject = strings.Join(focus, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s view for the %s phase, focused on %s.\n\n", role.Name, phase, subject)
	for _, s := range role.Strengths {
		fmt.Fprintf(&b, "On %s: the request touches %s, so %s needs an explicit owner and a measurable outcome before work moves on. ",
			s, subject, s)
	}
	b.WriteString("\n\nRecommendations:\n")

	strengths := role.Strengths
	fmt.Fprintf(&b, "- Address %s early in the %s phase\n", strengths[0], phase)
	if len(strengths) > 1 {
		fmt.Fprintf(&b, "- Agree on %s decisions with the other analysts\n", strengths[1])
	}
	if len(strengths) > 2 {
		fmt.Fprintf(&b, "- Review the largest risk around %s before committing\n", strengths[2])
	}
	if len(strengths) > 3 {
		fmt.Fprintf(&b, "- Capture the opportunity in %s once the basics are proven\n", strengths[3])
	}

	return Success(b.String(), Usage{})
}

// lineValue returns the trimmed text after prefix on the first line that starts with it.
func lineValue(text, prefix string) string {
	for _, line := range strings.Split(text, "\n") {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(line), prefix); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

func afterMarker(text, marker string) string {
	if _, rest, ok := strings.Cut(text, marker); ok {
		return rest
	}
	return text
}

var stopWords = map[string]bool{
	"about": true, "after": true, "their": true, "there": true, "these": true,
	"which": true, "while": true, "would": true, "should": true, "could": true,
	"where": true, "other": true, "being": true, "under": true, "every": true,
}

// focusTerms picks the n longest distinct words of five or more letters,
// ties broken alphabetically.
func focusTerms(text string, n int) []string {
	seen := map[string]bool{}
	var words []string
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '-'
	}) {
		w = strings.Trim(w, "-")
		if len([]rune(w)) < 5 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}

	sort.Slice(words, func(i, j int) bool {
		if len(words[i]) != len(words[j]) {
			return len(words[i]) > len(words[j])
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}
