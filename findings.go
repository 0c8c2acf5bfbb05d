package restyle

import (
	"fmt"
	"sort"
	"strings"
)

// Severity represents the importance level of a finding
type Severity string

const (
	SeverityError   Severity = "error"   // Fails the run, shown as error in CI
	SeverityWarning Severity = "warning" // Reported but does not fail the run
)

// String implements the Stringer interface for Severity
func (s Severity) String() string {
	return string(s)
}

// ParseSeverity converts a string to a Severity level.
// The second return value reports whether the input named a known level.
func ParseSeverity(s string) (Severity, bool) {
	switch s {
	case "warning", "warn":
		return SeverityWarning, true
	case "error":
		return SeverityError, true
	default:
		return SeverityError, false
	}
}

// Finding represents a single rule violation reported for a file.
// Line and Character are optional; nil means the rule could not attach
// a position (e.g. file-level rules).
type Finding struct {
	RuleID    string   // Stable rule identifier (e.g. "line_length")
	RuleName  string   // Human-readable rule name (e.g. "Line Length")
	Reason    string   // Why the rule fired
	Severity  Severity // error or warning
	File      string   // The file where the finding was reported
	Line      *int     // 1-indexed line, nil if unknown
	Character *int     // 1-indexed column, nil if unknown
	Cached    bool     // Whether the finding was reused from the result cache
}

// Error implements the error interface
func (f *Finding) Error() string {
	if f.Line != nil {
		return fmt.Sprintf("%s:%d: %s: %s (%s)", f.File, *f.Line, f.Severity, f.Reason, f.RuleID)
	}
	return fmt.Sprintf("%s: %s: %s (%s)", f.File, f.Severity, f.Reason, f.RuleID)
}

// Findings is a collection of Finding records
type Findings struct {
	Findings []Finding `json:"findings"`
}

// NewFindings creates a new empty collection of findings
func NewFindings() *Findings {
	return &Findings{
		Findings: make([]Finding, 0),
	}
}

// Add adds a finding to the collection
func (v *Findings) Add(finding Finding) {
	v.Findings = append(v.Findings, finding)
}

// IsEmpty returns true if there are no findings
func (v *Findings) IsEmpty() bool {
	return len(v.Findings) == 0
}

// HasErrors returns true if any finding has error severity
func (v *Findings) HasErrors() bool {
	for _, f := range v.Findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Error implements the error interface
func (v *Findings) Error() string {
	return v.PrintByFile()
}

// String implements the Stringer interface
func (v *Findings) String() string {
	return v.PrintByFile()
}

// PrintByFile prints the findings grouped by file
func (v *Findings) PrintByFile() string {
	if len(v.Findings) == 0 {
		return "No style findings"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d style findings grouped by file:\n", len(v.Findings))

	fileFindings := make(map[string][]Finding)
	for _, f := range v.Findings {
		fileFindings[f.File] = append(fileFindings[f.File], f)
	}

	for _, file := range sortedKeys(fileFindings) {
		findings := fileFindings[file]
		fmt.Fprintf(&b, "File: %s (%d findings)\n", file, len(findings))
		for _, f := range findings {
			if f.Line != nil {
				fmt.Fprintf(&b, "  - line %d: [%s] %s (%s)\n", *f.Line, f.Severity, f.Reason, f.RuleID)
			} else {
				fmt.Fprintf(&b, "  - [%s] %s (%s)\n", f.Severity, f.Reason, f.RuleID)
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

// PrintByRule prints the findings grouped by rule
func (v *Findings) PrintByRule() string {
	if len(v.Findings) == 0 {
		return "No style findings"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d style findings grouped by rule:\n", len(v.Findings))

	ruleFindings := make(map[string][]Finding)
	for _, f := range v.Findings {
		ruleFindings[f.RuleID] = append(ruleFindings[f.RuleID], f)
	}

	for _, rule := range sortedKeys(ruleFindings) {
		findings := ruleFindings[rule]
		fmt.Fprintf(&b, "Rule: %s (%d findings)\n", rule, len(findings))
		for _, f := range findings {
			if f.Line != nil {
				fmt.Fprintf(&b, "  - %s:%d: [%s] %s\n", f.File, *f.Line, f.Severity, f.Reason)
			} else {
				fmt.Fprintf(&b, "  - %s: [%s] %s\n", f.File, f.Severity, f.Reason)
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

func sortedKeys(m map[string][]Finding) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
