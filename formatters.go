package restyle

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	// FormatText outputs human-readable text (default)
	FormatText OutputFormat = "text"
	// FormatJSON outputs machine-readable JSON
	FormatJSON OutputFormat = "json"
	// FormatCheckstyle outputs Checkstyle XML format
	FormatCheckstyle OutputFormat = "checkstyle"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(findings *Findings) ([]byte, error)
	ContentType() string
}

// NewFormatter creates formatters based on the output format
func NewFormatter(format OutputFormat) (Formatter, error) {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Pretty: true}, nil
	case FormatCheckstyle:
		return &CheckstyleFormatter{}, nil
	case FormatText:
		return &TextFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// TextFormatter outputs findings as plain text, grouped by file
type TextFormatter struct {
	GroupByRule bool
}

func (f *TextFormatter) Format(findings *Findings) ([]byte, error) {
	if f.GroupByRule {
		return []byte(findings.PrintByRule()), nil
	}
	return []byte(findings.PrintByFile()), nil
}

func (f *TextFormatter) ContentType() string {
	return "text/plain"
}

// JSONFormatter outputs findings in JSON format
type JSONFormatter struct {
	Pretty bool
}

// JSONOutput represents the JSON output structure
type JSONOutput struct {
	Summary   Summary       `json:"summary"`
	Findings  []JSONFinding `json:"findings"`
	Rules     []RuleSummary `json:"rules"`
	Timestamp string        `json:"timestamp"`
}

type Summary struct {
	TotalFindings   int    `json:"total_findings"`
	FilesWithIssues int    `json:"files_with_issues"`
	FromCache       int    `json:"from_cache"`
	Status          string `json:"status"`
}

type JSONFinding struct {
	File      string `json:"file"`
	Line      int    `json:"line,omitempty"`
	Character int    `json:"character,omitempty"`
	RuleID    string `json:"rule_id"`
	RuleName  string `json:"rule_name"`
	Severity  string `json:"severity"`
	Reason    string `json:"reason"`
	Cached    bool   `json:"cached,omitempty"`
}

type RuleSummary struct {
	ID       string `json:"id"`
	Findings int    `json:"findings"`
}

func (f *JSONFormatter) Format(findings *Findings) ([]byte, error) {
	output := f.buildJSONOutput(findings)

	if f.Pretty {
		return json.MarshalIndent(output, "", "  ")
	}
	return json.Marshal(output)
}

func (f *JSONFormatter) ContentType() string {
	return "application/json"
}

func (f *JSONFormatter) buildJSONOutput(findings *Findings) JSONOutput {
	fileMap := make(map[string]bool)
	ruleCount := make(map[string]int)
	fromCache := 0

	jsonFindings := make([]JSONFinding, 0, len(findings.Findings))
	for _, v := range findings.Findings {
		fileMap[v.File] = true
		ruleCount[v.RuleID]++
		if v.Cached {
			fromCache++
		}

		jf := JSONFinding{
			File:     v.File,
			RuleID:   v.RuleID,
			RuleName: v.RuleName,
			Severity: v.Severity.String(),
			Reason:   v.Reason,
			Cached:   v.Cached,
		}
		if v.Line != nil {
			jf.Line = *v.Line
		}
		if v.Character != nil {
			jf.Character = *v.Character
		}
		jsonFindings = append(jsonFindings, jf)
	}

	status := "passed"
	if findings.HasErrors() {
		status = "failed"
	}

	rules := make([]RuleSummary, 0, len(ruleCount))
	for id, count := range ruleCount {
		rules = append(rules, RuleSummary{ID: id, Findings: count})
	}

	return JSONOutput{
		Summary: Summary{
			TotalFindings:   len(findings.Findings),
			FilesWithIssues: len(fileMap),
			FromCache:       fromCache,
			Status:          status,
		},
		Findings:  jsonFindings,
		Rules:     rules,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// CheckstyleFormatter outputs findings in Checkstyle XML format
type CheckstyleFormatter struct{}

type checkstyleOutput struct {
	XMLName xml.Name         `xml:"checkstyle"`
	Version string           `xml:"version,attr"`
	Files   []checkstyleFile `xml:"file"`
}

type checkstyleFile struct {
	Name   string            `xml:"name,attr"`
	Errors []checkstyleError `xml:"error"`
}

type checkstyleError struct {
	Line     int    `xml:"line,attr"`
	Column   int    `xml:"column,attr,omitempty"`
	Severity string `xml:"severity,attr"`
	Message  string `xml:"message,attr"`
	Source   string `xml:"source,attr"`
}

func (f *CheckstyleFormatter) Format(findings *Findings) ([]byte, error) {
	fileFindings := make(map[string][]Finding)
	var order []string
	for _, v := range findings.Findings {
		if _, seen := fileFindings[v.File]; !seen {
			order = append(order, v.File)
		}
		fileFindings[v.File] = append(fileFindings[v.File], v)
	}

	output := checkstyleOutput{Version: "4.3"}
	for _, file := range order {
		cf := checkstyleFile{Name: file}
		for _, v := range fileFindings[file] {
			ce := checkstyleError{
				Severity: v.Severity.String(),
				Message:  v.Reason,
				Source:   "restyle." + v.RuleID,
			}
			if v.Line != nil {
				ce.Line = *v.Line
			}
			if v.Character != nil {
				ce.Column = *v.Character
			}
			cf.Errors = append(cf.Errors, ce)
		}
		output.Files = append(output.Files, cf)
	}

	data, err := xml.MarshalIndent(output, "", "  ")
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(xml.Header)
	b.Write(data)
	b.WriteString("\n")
	return []byte(b.String()), nil
}

func (f *CheckstyleFormatter) ContentType() string {
	return "application/xml"
}
