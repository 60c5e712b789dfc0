package logging

import (
	"testing"

	"github.com/fyrsmithlabs/council/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func encode(t *testing.T, enc zapcore.Encoder, msg string, fields ...zap.Field) string {
	t.Helper()
	buf, err := enc.EncodeEntry(zapcore.Entry{Level: zapcore.InfoLevel, Message: msg}, fields)
	require.NoError(t, err)
	defer buf.Free()
	return buf.String()
}

func TestRedactingEncoder_SensitiveKeys(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	out := encode(t, enc, "provider configured",
		zap.String("api_key", "plain-value"),
		zap.String("Authorization", "whatever"),
		zap.String("model", "gpt-4o-mini"),
	)

	assert.NotContains(t, out, "plain-value")
	assert.NotContains(t, out, "whatever")
	assert.Contains(t, out, `"api_key":"[REDACTED]"`)
	assert.Contains(t, out, `"model":"gpt-4o-mini"`)
}

func TestRedactingEncoder_CredentialPatterns(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	out := encode(t, enc, "request failed with key sk-ant-api03-abcdefghijkl",
		zap.String("error", "upstream said: Bearer abc.def.ghi invalid"),
		zap.String("detail", "used sk-abcdefghijklmnopqrstuv"),
	)

	assert.NotContains(t, out, "sk-ant-api03-abcdefghijkl")
	assert.NotContains(t, out, "abc.def.ghi")
	assert.NotContains(t, out, "sk-abcdefghijklmnopqrstuv")
	assert.Contains(t, out, "upstream said: [REDACTED] invalid")
}

func TestRedactingEncoder_WithFieldsAreRedacted(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	clone := enc.Clone()
	clone.AddString("token", "t-123")

	out := encode(t, clone, "hello")
	assert.Contains(t, out, `"token":"[REDACTED]"`)
}

func TestRedactingEncoder_Disabled(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{})
	require.NoError(t, err)

	out := encode(t, enc, "raw", zap.String("api_key", "visible"))
	assert.Contains(t, out, "visible")
}

func TestNewRedactingEncoder_InvalidPattern(t *testing.T) {
	_, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{Enabled: true, Patterns: []string{"("}})
	assert.Error(t, err)
}

func TestSecretField(t *testing.T) {
	f := Secret("api_key", config.Secret("sk-12345"))
	assert.Equal(t, "[REDACTED:8]", f.String)

	f = RedactedString("authorization", "")
	assert.Equal(t, "[REDACTED:0]", f.String)
}
