package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fyrsmithlabs/council/internal/orchestrator"
	"github.com/fyrsmithlabs/council/internal/roles"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printSession writes a human-readable session report.
func printSession(w io.Writer, s orchestrator.Session, source string) {
	fmt.Fprintf(w, "Session:  %s\n", s.ID)
	fmt.Fprintf(w, "Status:   %s\n", s.Status)
	fmt.Fprintf(w, "Phase:    %s\n", s.Phase)
	if source == "archive" {
		fmt.Fprintf(w, "Source:   archive\n")
	}
	fmt.Fprintf(w, "Errors:   %d\n", s.Metadata.ErrorCount)
	fmt.Fprintf(w, "Tokens:   %d (~$%.4f)\n", s.Metadata.TokenEstimate, s.Metadata.CostEstimate)
	if s.Metadata.DurationMS > 0 {
		fmt.Fprintf(w, "Duration: %dms\n", s.Metadata.DurationMS)
	}
	if s.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", s.Error)
	}
	if s.CancelRequested && !s.Status.Terminal() {
		fmt.Fprintf(w, "Cancellation pending\n")
	}

	if len(s.Insights) > 0 {
		fmt.Fprintf(w, "\nInsights:\n")
		for _, id := range roles.IDs() {
			in, ok := s.Insights[id]
			if !ok {
				continue
			}
			marker := ""
			if in.Metrics.UsedFallback {
				marker = " [fallback]"
			}
			fmt.Fprintf(w, "  %-13s %-9s confidence %.2f%s\n", id, in.Phase, in.Confidence, marker)
		}
	}

	if s.Synthesis != nil {
		fmt.Fprintf(w, "\nSynthesis (confidence %.2f):\n  %s\n", s.Synthesis.Confidence, s.Synthesis.Summary)
		for _, step := range s.Synthesis.NextSteps {
			fmt.Fprintf(w, "  next: %s\n", step)
		}
	}

	if len(s.Recommendations) > 0 {
		fmt.Fprintf(w, "\nRecommendations:\n")
		for i, r := range s.Recommendations {
			fmt.Fprintf(w, "  %2d. [%s/%s] %s\n", i+1, r.Priority, r.Type, truncate(r.Title, 100))
		}
	}
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
