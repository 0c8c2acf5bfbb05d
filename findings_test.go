package restyle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeverity(t *testing.T) {
	tests := map[string]struct {
		input string
		want  Severity
		known bool
	}{
		"warning":   {input: "warning", want: SeverityWarning, known: true},
		"warn":      {input: "warn", want: SeverityWarning, known: true},
		"error":     {input: "error", want: SeverityError, known: true},
		"unknown":   {input: "critical", want: SeverityError, known: false},
		"empty":     {input: "", want: SeverityError, known: false},
		"uppercase": {input: "WARNING", want: SeverityError, known: false},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, known := ParseSeverity(test.input)
			assert.Equal(t, test.want, got)
			assert.Equal(t, test.known, known)
		})
	}
}

func TestFinding_Error(t *testing.T) {
	f := Finding{
		RuleID:   "line_length",
		Reason:   "Line should be 100 characters or less",
		Severity: SeverityWarning,
		File:     "a.go",
		Line:     intPtr(12),
	}
	assert.Equal(t, "a.go:12: warning: Line should be 100 characters or less (line_length)", f.Error())

	f.Line = nil
	assert.Equal(t, "a.go: warning: Line should be 100 characters or less (line_length)", f.Error())
}

func TestFindings_HasErrors(t *testing.T) {
	findings := NewFindings()
	assert.False(t, findings.HasErrors())

	findings.Add(Finding{Severity: SeverityWarning})
	assert.False(t, findings.HasErrors())

	findings.Add(Finding{Severity: SeverityError})
	assert.True(t, findings.HasErrors())
}

func TestFindings_PrintByFile(t *testing.T) {
	findings := NewFindings()
	assert.Equal(t, "No style findings", findings.PrintByFile())

	findings.Add(Finding{RuleID: "a", Reason: "first", Severity: SeverityWarning, File: "one.go", Line: intPtr(3)})
	findings.Add(Finding{RuleID: "b", Reason: "second", Severity: SeverityError, File: "two.go"})

	out := findings.PrintByFile()
	assert.Contains(t, out, "Found 2 style findings")
	assert.Contains(t, out, "File: one.go (1 findings)")
	assert.Contains(t, out, "line 3: [warning] first (a)")
	assert.Contains(t, out, "File: two.go (1 findings)")
}

func TestFindings_PrintByRule(t *testing.T) {
	findings := NewFindings()

	findings.Add(Finding{RuleID: "line_length", Reason: "too long", Severity: SeverityWarning, File: "one.go", Line: intPtr(3)})
	findings.Add(Finding{RuleID: "line_length", Reason: "too long", Severity: SeverityWarning, File: "two.go", Line: intPtr(9)})

	out := findings.PrintByRule()
	assert.Contains(t, out, "Rule: line_length (2 findings)")
	assert.Contains(t, out, "one.go:3")
	assert.Contains(t, out, "two.go:9")
}

func TestFindings_IsEmpty(t *testing.T) {
	findings := NewFindings()
	require.True(t, findings.IsEmpty())

	findings.Add(Finding{RuleID: "a"})
	assert.False(t, findings.IsEmpty())
}
