package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// writeJSON encodes v as indented JSON to w.
func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// printf writes a formatted line to w, ignoring write errors the way
// terminal output conventionally does.
func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}

// printWarnings renders load/recovery warnings for text output.
func printWarnings(w io.Writer, warnings []string) {
	for _, warning := range warnings {
		printf(w, "warning: %s", warning)
	}
}

// errorResponse is the uniform JSON error envelope.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// emitError reports a command failure in the requested format and
// returns the original error so the exit code reflects it.
func emitError(format string, w io.Writer, err error) error {
	if format == OutputJSON {
		_ = writeJSON(w, errorResponse{Success: false, Error: err.Error()})
	}
	return err
}

// joinOr renders a list as "a, b or c" for help and error text.
func joinOr(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " or " + items[len(items)-1]
	}
}
