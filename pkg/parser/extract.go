package parser

import (
	"regexp"
	"strings"
)

var (
	timestampRe = regexp.MustCompile(`(?i)\d{4}[-/]\d{2}[-/]\d{2}[\sT]\d{2}:\d{2}:\d{2}`)
	ipv4Re      = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	errorCodeRe = regexp.MustCompile(`\b[A-Z]{2,5}[-_]?\d{3,5}\b`)
	severityRe  = regexp.MustCompile(`(?i)\b(?:FATAL|ERROR|WARN|WARNING|INFO|DEBUG|TRACE)\b`)

	entryStartRe = regexp.MustCompile(
		`^\s*\[?(?:\d{4}[-/]\d{2}[-/]\d{2}[\sT]\d{2}:\d{2}:\d{2}|[A-Z][a-z]{2} +\d{1,2} \d{2}:\d{2}:\d{2})`,
	)
)

// ExtractPatterns scans every non-blank line of cleaned text and collects
// timestamps, IPv4 addresses, error codes and severity keywords.
func ExtractPatterns(cleaned string) PatternSet {
	var ps PatternSet
	for _, line := range strings.Split(cleaned, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		ps.Timestamps = append(ps.Timestamps, timestampRe.FindAllString(line, -1)...)
		ps.IPAddresses = append(ps.IPAddresses, ipv4Re.FindAllString(line, -1)...)
		ps.ErrorCodes = append(ps.ErrorCodes, errorCodeRe.FindAllString(line, -1)...)
		ps.SeverityLevels = append(ps.SeverityLevels, severityRe.FindAllString(line, -1)...)
	}
	return ps
}

// IsEntryStart reports whether line begins with an ISO-like or syslog timestamp.
func IsEntryStart(line string) bool {
	return entryStartRe.MatchString(line)
}
