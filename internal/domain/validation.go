package domain

import "time"

// Severity classifies a validation issue.
type Severity string

// Severity constants in decreasing order of weight.
const (
	// SeverityError blocks the operation that requested validation.
	SeverityError Severity = "error"

	// SeverityWarning is surfaced to the caller but does not block.
	SeverityWarning Severity = "warning"

	// SeverityInfo is advisory only.
	SeverityInfo Severity = "info"
)

// String returns the string representation of the Severity.
func (s Severity) String() string {
	return string(s)
}

// ReportStatus is the derived overall status of a validation report.
type ReportStatus string

// Report status constants. Errors dominate warnings, warnings dominate valid.
const (
	ReportValid    ReportStatus = "valid"
	ReportWarnings ReportStatus = "warnings"
	ReportErrors   ReportStatus = "errors"
)

// ValidationIssue is one finding produced by a validation rule.
type ValidationIssue struct {
	// RuleID identifies the rule that produced the issue.
	RuleID string `json:"rule_id"`

	// Severity is the issue's weight.
	Severity Severity `json:"severity"`

	// Message is the human-readable finding.
	Message string `json:"message"`

	// Location optionally names where the issue was found
	// (e.g. "tasks.md:12" or "requirements §2").
	Location string `json:"location,omitempty"`

	// Suggestion optionally proposes a fix.
	Suggestion string `json:"suggestion,omitempty"`
}

// ValidationReport aggregates the issues found for a document or a
// whole spec.
type ValidationReport struct {
	// SpecID identifies the validated spec.
	SpecID string `json:"spec_id"`

	// Issues holds all findings, sorted by rule ID then location.
	Issues []ValidationIssue `json:"issues,omitempty"`

	// GeneratedAt is when the report was produced.
	GeneratedAt time.Time `json:"generated_at"`
}

// Add appends an issue to the report.
func (r *ValidationReport) Add(issue ValidationIssue) {
	r.Issues = append(r.Issues, issue)
}

// Merge appends all issues from another report.
func (r *ValidationReport) Merge(other *ValidationReport) {
	if other == nil {
		return
	}
	r.Issues = append(r.Issues, other.Issues...)
}

// Status derives the overall report status from the issues present.
func (r *ValidationReport) Status() ReportStatus {
	status := ReportValid
	for _, issue := range r.Issues {
		switch issue.Severity {
		case SeverityError:
			return ReportErrors
		case SeverityWarning:
			status = ReportWarnings
		case SeverityInfo:
			// Advisory only, does not affect status.
		}
	}
	return status
}

// HasErrors reports whether any error-severity issue is present.
func (r *ValidationReport) HasErrors() bool {
	return r.Status() == ReportErrors
}

// Warnings returns the messages of all warning-severity issues.
func (r *ValidationReport) Warnings() []string {
	var out []string
	for _, issue := range r.Issues {
		if issue.Severity == SeverityWarning {
			out = append(out, issue.Message)
		}
	}
	return out
}
