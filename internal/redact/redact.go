// Package redact scrubs secrets from request text before it reaches a
// capability provider, using the gitleaks rule set.
package redact

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"

	"github.com/fyrsmithlabs/council/internal/config"
)

var (
	// ErrInvalidRegex indicates an allowlist pattern failed to compile.
	ErrInvalidRegex = errors.New("invalid regex pattern")

	// ErrInvalidTOML indicates an allowlist file could not be parsed.
	ErrInvalidTOML = errors.New("invalid TOML format")
)

// Redactor replaces detected secrets with [REDACTED:rule-id] markers.
// It is safe for concurrent use.
type Redactor struct {
	mu       sync.Mutex
	detector *detect.Detector
}

// New builds a redactor from the default gitleaks rules plus the optional
// allowlist file. A missing allowlist file is not an error.
func New(cfg config.RedactionConfig) (*Redactor, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("creating secret detector: %w", err)
	}

	if cfg.AllowlistPath != "" {
		patterns, err := LoadAllowlist(cfg.AllowlistPath)
		if err != nil {
			return nil, err
		}
		applyAllowlist(&detector.Config, patterns)
	}

	return &Redactor{detector: detector}, nil
}

// Redact returns text with every detected secret replaced, and the number
// of findings.
func (r *Redactor) Redact(text string) (string, int) {
	if text == "" {
		return text, 0
	}

	r.mu.Lock()
	findings := r.detector.DetectString(text)
	r.mu.Unlock()

	markers := make(map[string]string, len(findings))
	count := 0
	for _, f := range findings {
		if f.Secret == "" {
			continue
		}
		count++
		if _, ok := markers[f.Secret]; !ok {
			markers[f.Secret] = "[REDACTED:" + f.RuleID + "]"
		}
	}
	if count == 0 {
		return text, 0
	}

	// Longest first so a secret containing another is replaced whole.
	secrets := make([]string, 0, len(markers))
	for s := range markers {
		secrets = append(secrets, s)
	}
	sort.Slice(secrets, func(i, j int) bool {
		if len(secrets[i]) != len(secrets[j]) {
			return len(secrets[i]) > len(secrets[j])
		}
		return secrets[i] < secrets[j]
	})

	for _, s := range secrets {
		text = strings.ReplaceAll(text, s, markers[s])
	}
	return text, count
}

// LoadAllowlist reads the [allowlist] regexes of a gitleaks-style TOML file.
func LoadAllowlist(path string) ([]string, error) {
	var file struct {
		Allowlist struct {
			Regexes []string
		}
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading allowlist %s: %w", path, err)
	}

	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}

	for _, pattern := range file.Allowlist.Regexes {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: invalid pattern '%s' in %s: %v", ErrInvalidRegex, pattern, path, err)
		}
	}
	return file.Allowlist.Regexes, nil
}

// applyAllowlist adds the patterns as a global gitleaks allowlist. Patterns
// must already be validated by LoadAllowlist.
func applyAllowlist(cfg *gitleaksConfig.Config, patterns []string) {
	if len(patterns) == 0 {
		return
	}

	global := &gitleaksConfig.Allowlist{
		Description: "council request allowlist",
	}
	for _, pattern := range patterns {
		re := regexp.MustCompile(pattern)
		global.Regexes = append(global.Regexes, (*gitleaksRegexp.Regexp)(re))
	}
	cfg.Allowlists = append(cfg.Allowlists, global)
}
