package restyle

import (
	"bufio"

	"github.com/spf13/afero"
)

// CodeContext represents source code lines around a finding
type CodeContext struct {
	Lines       []CodeLine // Source lines with context
	FindingLine int        // Which line has the finding (1-indexed)
}

// CodeLine represents a single line of source code
type CodeLine struct {
	Number    int    // Line number (1-indexed)
	Content   string // Line content
	IsFinding bool   // True if this is the finding line
}

// ExtractCodeContext extracts source code around a finding's position,
// showing contextLines lines before and after.
func ExtractCodeContext(fs afero.Fs, filePath string, line *int, contextLines int) (*CodeContext, error) {
	if line == nil || *line < 1 {
		return nil, nil // No position, no context
	}

	file, err := fs.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	target := *line
	if target > len(lines) {
		return nil, nil
	}

	start := target - contextLines
	if start < 1 {
		start = 1
	}
	end := target + contextLines
	if end > len(lines) {
		end = len(lines)
	}

	ctx := &CodeContext{FindingLine: target}
	for n := start; n <= end; n++ {
		ctx.Lines = append(ctx.Lines, CodeLine{
			Number:    n,
			Content:   lines[n-1],
			IsFinding: n == target,
		})
	}
	return ctx, nil
}
