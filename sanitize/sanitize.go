// Package sanitize implements the sanitization invariant required of any
// value entering WorkflowState.context or a checkpoint snapshot: it must be
// JSON-representable, have secret-like substrings redacted, be truncated
// above a configurable limit, and have circular references broken.
package sanitize

import (
	"encoding/json"
	"regexp"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// RedactionMarker replaces any substring matching a secret pattern.
	RedactionMarker = "[REDACTED]"
	// TruncatedMarker is appended to a value truncated above the byte limit.
	TruncatedMarker = "_truncated"
	// DefaultByteLimit is the default maximum serialized size of a sanitized value.
	DefaultByteLimit = 64 * 1024
	// DefaultTokenLimit caps the estimated token count of a sanitized value,
	// applied alongside the byte limit (whichever triggers first wins).
	DefaultTokenLimit = 16000
)

// secretPatterns mirrors the precompiled-regex idiom used by config/env.go
// for ${VAR} expansion, applied here to redact API-key/token-shaped
// substrings instead of expanding them.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[A-Za-z0-9_-]{16,}`),
	regexp.MustCompile(`(?i)api[_-]?key["':= ]+[A-Za-z0-9_\-./+]{12,}`),
	regexp.MustCompile(`(?i)bearer [A-Za-z0-9_\-./+]{12,}`),
	regexp.MustCompile(`ghp_[A-Za-z0-9]{20,}`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`), // JWT-shaped
}

var tokenEncoding = func() *tiktoken.Tiktoken {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil
	}
	return enc
}()

// Options controls the truncation limits applied by Sanitize.
type Options struct {
	ByteLimit  int
	TokenLimit int
}

// DefaultOptions returns the PML's default sanitization limits.
func DefaultOptions() Options {
	return Options{ByteLimit: DefaultByteLimit, TokenLimit: DefaultTokenLimit}
}

// Sanitize applies the full sanitization invariant to v and returns a
// JSON-representable, redacted, size-bounded, cycle-free value.
func Sanitize(v any, opts Options) any {
	broken := breakCycles(v)
	redacted := redactValue(broken)

	data, err := json.Marshal(redacted)
	if err != nil {
		// Not JSON-representable (e.g. a function, channel, or unexported
		// struct that failed to marshal) — fall back to its string form,
		// which is always representable.
		data, _ = json.Marshal(redactString(jsonFallback(redacted)))
		return truncateBytes(string(data), opts)
	}

	return truncateBytes(string(data), opts)
}

// jsonFallback stringifies a value that failed to marshal directly.
func jsonFallback(v any) string {
	return stringify(v)
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt_Stringer:
		return t.String()
	default:
		return genericSprint(v)
	}
}

type fmt_Stringer interface{ String() string }

// redactValue walks a generic JSON-ish value (maps/slices/strings/scalars)
// and redacts secret-shaped strings wherever they occur.
func redactValue(v any) any {
	switch t := v.(type) {
	case string:
		return redactString(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = redactValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = redactValue(val)
		}
		return out
	default:
		return v
	}
}

func redactString(s string) string {
	for _, p := range secretPatterns {
		s = p.ReplaceAllString(s, RedactionMarker)
	}
	return s
}

// truncateBytes enforces both the byte limit and the token-estimate limit,
// returning either the original JSON string unmodified or a JSON object
// `{"_truncated": true, "preview": "..."}` when either limit is exceeded.
func truncateBytes(jsonStr string, opts Options) any {
	if opts.ByteLimit <= 0 {
		opts.ByteLimit = DefaultByteLimit
	}
	if opts.TokenLimit <= 0 {
		opts.TokenLimit = DefaultTokenLimit
	}

	overByte := len(jsonStr) > opts.ByteLimit
	overToken := EstimateTokens(jsonStr) > opts.TokenLimit
	if !overByte && !overToken {
		var out any
		if err := json.Unmarshal([]byte(jsonStr), &out); err != nil {
			return jsonStr
		}
		return out
	}

	previewLen := opts.ByteLimit
	if previewLen > len(jsonStr) {
		previewLen = len(jsonStr)
	}
	return map[string]any{
		TruncatedMarker: true,
		"preview":       jsonStr[:previewLen],
	}
}

// EstimateTokens returns a tiktoken-based token-count estimate for text,
// falling back to a byte/4 heuristic only if the encoder failed to load
// (it never does in practice; the fallback exists so Sanitize degrades
// gracefully rather than panicking in a stripped-down build).
func EstimateTokens(text string) int {
	if tokenEncoding == nil {
		return len(text) / 4
	}
	return len(tokenEncoding.Encode(text, nil, nil))
}

// breakCycles walks maps/slices and caps recursion depth. Values decoded
// from JSON can never contain a true reference cycle (they are trees), but
// values constructed programmatically (e.g. a code_exec result built by
// hand before being sanitized) can self-reference; the depth cap turns an
// otherwise-infinite walk into a bounded one and surfaces a marker instead
// of overflowing the stack.
func breakCycles(v any) any {
	return breakCyclesDepth(v, 0)
}

const maxSanitizeDepth = 64

func breakCyclesDepth(v any, depth int) any {
	if depth > maxSanitizeDepth {
		return "_circular_reference"
	}
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = breakCyclesDepth(val, depth+1)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = breakCyclesDepth(val, depth+1)
		}
		return out
	default:
		return v
	}
}

func genericSprint(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "<unrepresentable>"
	}
	return string(b)
}
