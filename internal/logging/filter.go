// Package logging keeps credentials out of log output. Spec documents
// and collaborator error messages are logged freely elsewhere in the
// tool, and either can carry a pasted token or key; everything headed
// for the log file passes through the filters here first.
package logging

import (
	"io"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// RedactedValue replaces any matched credential.
const RedactedValue = "[REDACTED]"

// credentialPatterns match token and key shapes that show up pasted
// into documents or echoed by failing collaborators.
var credentialPatterns = []*regexp.Regexp{ //nolint:gochecknoglobals // compiled once
	regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),                                              // sk- API keys
	regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{20,}`),                                         // GitHub tokens
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*["']?([a-zA-Z0-9_-]{16,})["']?`),   // key = value
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_-]{20,}`),                                    // Authorization headers
	regexp.MustCompile(`(?i)(secret|password|credential|passwd|pwd)\s*[:=]\s*["']?[^\s"']{8,}["']?`), // assignments
	regexp.MustCompile(`(?i)-----BEGIN[A-Z\s]+PRIVATE KEY-----`),                             // PEM blocks
}

// redactedFieldNames name structured-log fields whose values are
// redacted regardless of shape. Matched case-insensitively, substring
// included, so user_credentials and API_KEY both count.
var redactedFieldNames = []string{ //nolint:gochecknoglobals // compiled once
	"api_key", "apikey", "auth_token", "password", "passwd",
	"secret", "credential", "credentials", "private_key",
	"access_token", "refresh_token", "bearer", "authorization",
}

// ContainsSensitiveData reports whether s matches any credential shape.
func ContainsSensitiveData(s string) bool {
	for _, p := range credentialPatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// FilterSensitiveValue returns s with every credential match replaced
// by RedactedValue. Strings without matches come back unchanged.
func FilterSensitiveValue(s string) string {
	for _, p := range credentialPatterns {
		s = p.ReplaceAllString(s, RedactedValue)
	}
	return s
}

// IsSensitiveFieldName reports whether a structured-log field name
// marks its value for redaction.
func IsSensitiveFieldName(name string) bool {
	lower := strings.ToLower(name)
	for _, candidate := range redactedFieldNames {
		if strings.Contains(lower, candidate) {
			return true
		}
	}
	return false
}

// SensitiveDataHook marks log entries whose message matched a
// credential shape. A zerolog hook cannot rewrite the message, so the
// hook only tags the entry; redaction itself happens in FilteringWriter
// on the file path.
type SensitiveDataHook struct{}

// NewSensitiveDataHook returns the marker hook.
func NewSensitiveDataHook() *SensitiveDataHook {
	return &SensitiveDataHook{}
}

// Run implements zerolog.Hook.
func (h *SensitiveDataHook) Run(e *zerolog.Event, _ zerolog.Level, msg string) {
	if ContainsSensitiveData(msg) {
		e.Bool("contains_filtered_data", true)
	}
}

// FilteringWriter redacts credentials from everything written through
// it. It sits between zerolog and the log file so a credential can
// appear in memory but never on disk.
type FilteringWriter struct {
	dst io.Writer
}

// NewFilteringWriter wraps dst with redaction.
func NewFilteringWriter(dst io.Writer) *FilteringWriter {
	return &FilteringWriter{dst: dst}
}

// Write implements io.Writer. The reported length is that of the
// original input: redaction can shorten the payload, and a shorter
// return would read as a failed write upstream.
func (fw *FilteringWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(fw.dst, FilterSensitiveValue(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}
