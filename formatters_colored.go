package restyle

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/afero"
)

// ColoredTextFormatter outputs findings as colored terminal text with
// optional source context around each finding.
type ColoredTextFormatter struct {
	Fs           afero.Fs // For extracting code context; nil disables context
	ContextLines int      // Lines of context around each finding (0 = none)
	NoColor      bool
}

func (f *ColoredTextFormatter) ContentType() string {
	return "text/plain"
}

func (f *ColoredTextFormatter) Format(findings *Findings) ([]byte, error) {
	if f.NoColor {
		color.NoColor = true
	}

	errorColor := color.New(color.FgRed, color.Bold)
	warningColor := color.New(color.FgYellow, color.Bold)
	fileColor := color.New(color.FgCyan, color.Bold)
	ruleColor := color.New(color.FgMagenta)
	dimColor := color.New(color.Faint)

	if findings.IsEmpty() {
		return []byte(color.GreenString("✓ No style findings\n")), nil
	}

	var b strings.Builder

	fileFindings := make(map[string][]Finding)
	for _, v := range findings.Findings {
		fileFindings[v.File] = append(fileFindings[v.File], v)
	}

	for _, file := range sortedKeys(fileFindings) {
		fmt.Fprintf(&b, "%s\n", fileColor.Sprint(file))

		for _, v := range fileFindings[file] {
			severity := warningColor.Sprint(v.Severity)
			if v.Severity == SeverityError {
				severity = errorColor.Sprint(v.Severity)
			}

			position := ""
			if v.Line != nil {
				position = fmt.Sprintf("%d", *v.Line)
				if v.Character != nil {
					position += fmt.Sprintf(":%d", *v.Character)
				}
			}

			cached := ""
			if v.Cached {
				cached = dimColor.Sprint(" (cached)")
			}

			if position != "" {
				fmt.Fprintf(&b, "  %s: %s: %s %s%s\n", position, severity, v.Reason, ruleColor.Sprintf("(%s)", v.RuleID), cached)
			} else {
				fmt.Fprintf(&b, "  %s: %s %s%s\n", severity, v.Reason, ruleColor.Sprintf("(%s)", v.RuleID), cached)
			}

			f.writeContext(&b, dimColor, v)
		}
		b.WriteString("\n")
	}

	summary := fmt.Sprintf("Found %d findings in %d files\n", len(findings.Findings), len(fileFindings))
	if findings.HasErrors() {
		b.WriteString(errorColor.Sprint(summary))
	} else {
		b.WriteString(warningColor.Sprint(summary))
	}

	return []byte(b.String()), nil
}

func (f *ColoredTextFormatter) writeContext(b *strings.Builder, dim *color.Color, v Finding) {
	if f.Fs == nil || f.ContextLines == 0 || v.Cached {
		return
	}

	ctx, err := ExtractCodeContext(f.Fs, v.File, v.Line, f.ContextLines)
	if err != nil || ctx == nil {
		return
	}

	for _, line := range ctx.Lines {
		marker := "  "
		if line.IsFinding {
			marker = "> "
		}
		fmt.Fprintf(b, "    %s%s\n", marker, dim.Sprintf("%4d | %s", line.Number, line.Content))
	}
}
