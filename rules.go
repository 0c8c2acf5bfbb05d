package restyle

import (
	"fmt"
	"go/parser"
	"go/token"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/mod/modfile"
)

// RuleChecker analyzes the content of a single file and reports findings.
// Implementations must be safe for concurrent use; the concurrent linter
// calls Check from multiple workers.
type RuleChecker interface {
	// ID returns the stable rule identifier used in reports and the result cache
	ID() string
	// Name returns the human-readable rule name
	Name() string
	// Check analyzes a file's content and returns its findings
	Check(file string, content []byte) []Finding
}

// enabledRules builds the rule set for a configuration, skipping rules
// listed as disabled.
func enabledRules(cfg Config, fs afero.Fs) []RuleChecker {
	disabled := make(map[string]bool, len(cfg.Rules.Disabled))
	for _, id := range cfg.Rules.Disabled {
		disabled[id] = true
	}

	all := []RuleChecker{
		&LineLengthRule{Limits: cfg.Rules.LineLength},
		&FileLengthRule{Limits: cfg.Rules.FileLength},
		&TrailingWhitespaceRule{Severity: severityOrWarning(cfg.Rules.TrailingWhitespace.Severity)},
	}

	if len(cfg.Rules.ForbiddenImports) > 0 {
		rule := &ForbiddenImportRule{Imports: cfg.Rules.ForbiddenImports}
		if module, err := moduleName(fs, cfg.Modfile); err == nil {
			rule.Module = module
		}
		all = append(all, rule)
	}

	rules := make([]RuleChecker, 0, len(all))
	for _, r := range all {
		if !disabled[r.ID()] {
			rules = append(rules, r)
		}
	}
	return rules
}

func severityOrWarning(s string) Severity {
	severity, ok := ParseSeverity(s)
	if !ok {
		return SeverityWarning
	}
	return severity
}

// moduleName extracts the module path from a go.mod file. The module
// path lets forbidden-import entries match module-relative packages.
func moduleName(fs afero.Fs, modfilePath string) (string, error) {
	if modfilePath == "" {
		modfilePath = "go.mod"
	}

	goModBytes, err := afero.ReadFile(fs, modfilePath)
	if err != nil {
		return "", NewFSError("failed to read go.mod file", err).WithFile(modfilePath)
	}

	modulePath := modfile.ModulePath(goModBytes)
	if modulePath == "" {
		return "", NewParseError("failed to extract module path from go.mod", nil).WithFile(modfilePath)
	}

	return modulePath, nil
}

// splitLines splits content into lines without a trailing empty line for
// newline-terminated files.
func splitLines(content []byte) []string {
	lines := strings.Split(string(content), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

// LineLengthRule reports lines longer than the configured thresholds.
type LineLengthRule struct {
	Limits LimitRuleConfig
}

func (r *LineLengthRule) ID() string   { return "line_length" }
func (r *LineLengthRule) Name() string { return "Line Length" }

func (r *LineLengthRule) Check(file string, content []byte) []Finding {
	var findings []Finding
	for i, line := range splitLines(content) {
		length := len([]rune(line))

		severity := Severity("")
		limit := 0
		switch {
		case r.Limits.Error > 0 && length > r.Limits.Error:
			severity, limit = SeverityError, r.Limits.Error
		case r.Limits.Warning > 0 && length > r.Limits.Warning:
			severity, limit = SeverityWarning, r.Limits.Warning
		default:
			continue
		}

		lineNum := i + 1
		column := limit + 1
		findings = append(findings, Finding{
			RuleID:    r.ID(),
			RuleName:  r.Name(),
			Reason:    fmt.Sprintf("Line should be %d characters or less: currently %d characters", limit, length),
			Severity:  severity,
			File:      file,
			Line:      &lineNum,
			Character: &column,
		})
	}
	return findings
}

// FileLengthRule reports files longer than the configured thresholds.
// Findings carry the line count as position but no column.
type FileLengthRule struct {
	Limits LimitRuleConfig
}

func (r *FileLengthRule) ID() string   { return "file_length" }
func (r *FileLengthRule) Name() string { return "File Length" }

func (r *FileLengthRule) Check(file string, content []byte) []Finding {
	count := len(splitLines(content))

	severity := Severity("")
	limit := 0
	switch {
	case r.Limits.Error > 0 && count > r.Limits.Error:
		severity, limit = SeverityError, r.Limits.Error
	case r.Limits.Warning > 0 && count > r.Limits.Warning:
		severity, limit = SeverityWarning, r.Limits.Warning
	default:
		return nil
	}

	lineNum := count
	return []Finding{{
		RuleID:   r.ID(),
		RuleName: r.Name(),
		Reason:   fmt.Sprintf("File should contain %d lines or less: currently contains %d", limit, count),
		Severity: severity,
		File:     file,
		Line:     &lineNum,
	}}
}

// TrailingWhitespaceRule reports lines ending in spaces or tabs.
type TrailingWhitespaceRule struct {
	Severity Severity
}

func (r *TrailingWhitespaceRule) ID() string   { return "trailing_whitespace" }
func (r *TrailingWhitespaceRule) Name() string { return "Trailing Whitespace" }

func (r *TrailingWhitespaceRule) Check(file string, content []byte) []Finding {
	var findings []Finding
	for i, line := range splitLines(content) {
		trimmed := strings.TrimRight(line, " \t")
		if trimmed == line {
			continue
		}

		lineNum := i + 1
		column := len([]rune(trimmed)) + 1
		findings = append(findings, Finding{
			RuleID:    r.ID(),
			RuleName:  r.Name(),
			Reason:    "Lines should not have trailing whitespace",
			Severity:  r.Severity,
			File:      file,
			Line:      &lineNum,
			Character: &column,
		})
	}
	return findings
}

// ForbiddenImportRule reports imports of prohibited packages in Go files.
// Entries without dots also match module-relative packages when Module
// is set.
type ForbiddenImportRule struct {
	Imports []ForbiddenImport
	Module  string
}

func (r *ForbiddenImportRule) ID() string   { return "forbidden_import" }
func (r *ForbiddenImportRule) Name() string { return "Forbidden Import" }

func (r *ForbiddenImportRule) Check(file string, content []byte) []Finding {
	if !strings.HasSuffix(file, ".go") {
		return nil
	}

	fset := token.NewFileSet()
	parsed, err := parser.ParseFile(fset, file, content, parser.ImportsOnly)
	if err != nil {
		// Unparseable files are someone else's problem; skip quietly.
		return nil
	}

	prohibited := make(map[string]string, len(r.Imports))
	for _, imp := range r.Imports {
		prohibited[imp.Name] = imp.Cause
		if r.Module != "" && !strings.Contains(imp.Name, ".") {
			prohibited[r.Module+"/"+imp.Name] = imp.Cause
		}
	}

	var findings []Finding
	for _, spec := range parsed.Imports {
		path := strings.Trim(spec.Path.Value, `"`)
		cause, found := prohibited[path]
		if !found {
			continue
		}

		pos := fset.Position(spec.Path.Pos())
		line, column := pos.Line, pos.Column
		reason := fmt.Sprintf("Import %q is forbidden", path)
		if cause != "" {
			reason += ": " + cause
		}
		findings = append(findings, Finding{
			RuleID:    r.ID(),
			RuleName:  r.Name(),
			Reason:    reason,
			Severity:  SeverityError,
			File:      file,
			Line:      &line,
			Character: &column,
		})
	}
	return findings
}
