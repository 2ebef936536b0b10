package task

import "regexp"

var (
	// taskLineRegex matches checkbox task lines:
	// indentation, "- [<marker>] ", dotted numeric ID, ". " or " ", description.
	taskLineRegex = regexp.MustCompile(`^(\s*)- \[([ \-x!])\] (\d+(?:\.\d+)*)\.?\s+(.+)$`)

	// requirementsLineRegex matches the italicized traceability trailer,
	// e.g. "  _Requirements: 1.1, 2.3_".
	requirementsLineRegex = regexp.MustCompile(`^\s*_Requirements:\s*([^_]+)_\s*$`)
)
