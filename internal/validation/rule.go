// Package validation implements the rule-based document and state
// validation framework, plus the completion checks the task engine runs
// before marking a task done.
package validation

import (
	"context"

	"github.com/specdriven/specd/internal/constants"
	"github.com/specdriven/specd/internal/domain"
)

// Input is everything a rule may inspect. Docs holds the raw document
// texts; missing documents are simply absent from the map.
type Input struct {
	SpecID string
	Phase  constants.Phase
	Docs   map[constants.DocumentType]string
	State  *domain.WorkflowState
}

// Doc returns the named document text and whether it is present.
func (in *Input) Doc(docType constants.DocumentType) (string, bool) {
	content, ok := in.Docs[docType]
	return content, ok
}

// Rule is one validation check. Rules must be stateless and safe for
// concurrent use: the framework fans them out in parallel.
type Rule interface {
	// ID is the stable rule identifier reported in issues.
	ID() string

	// AppliesTo reports whether the rule runs for the given phase.
	AppliesTo(phase constants.Phase) bool

	// Check inspects the input and returns any findings.
	Check(ctx context.Context, in *Input) []domain.ValidationIssue
}
