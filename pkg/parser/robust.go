package parser

import (
	"regexp"
	"strings"
)

var (
	// Control characters other than tab, newline and carriage return.
	binaryRe = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
	// Escaped byte sequences left behind by an upstream encoder.
	escapedHexRe = regexp.MustCompile(`\\x[0-9a-fA-F]{2}`)
)

// Parse decodes raw and repairs it line by line. It never fails: the worst
// case is an empty string with a report describing what was dropped.
func Parse(raw []byte) (string, CorruptionReport) {
	text, enc := Decode(raw)
	cleaned, report := clean(text)
	report.Encoding = enc
	return cleaned, report
}

// ParseString is Parse for input that is already text.
func ParseString(s string) (string, CorruptionReport) {
	cleaned, report := clean(s)
	report.Encoding = EncodingText
	return cleaned, report
}

func clean(text string) (string, CorruptionReport) {
	var report CorruptionReport
	if text == "" {
		return "", report
	}

	lines := strings.Split(text, "\n")
	report.TotalLines = len(lines)
	kept := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			report.EmptyLines++
			continue
		}

		corrupted := false
		if strings.IndexByte(line, 0) >= 0 {
			report.TruncatedLines++
			corrupted = true
			line = strings.ReplaceAll(line, "\x00", "")
		}
		if binaryRe.MatchString(line) {
			report.CorruptedLines++
			corrupted = true
			line = binaryRe.ReplaceAllString(line, "")
		}
		if escapedHexRe.MatchString(line) {
			report.EncodingSuspectLines++
			corrupted = true
		}

		if strings.TrimSpace(line) == "" {
			report.EmptyLines++
			continue
		}
		if corrupted {
			report.RecoveredLines++
		}
		kept = append(kept, line)
	}

	return strings.Join(kept, "\n"), report
}
