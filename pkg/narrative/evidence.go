package narrative

import (
	"strings"

	"github.com/strrl/logsentry/pkg/pattern"
)

// SelectEvidence picks up to n sample lines for the prompt: first one line
// per template in hit order, then lines that mention a keyword and belong
// to no sampled template. lines is the cleaned log split on newlines.
func SelectEvidence(lines []string, templates []pattern.Template, n int) []string {
	if n <= 0 {
		return nil
	}

	var (
		out     []string
		sampled []pattern.Template
	)
	used := make(map[int]bool)
	for _, t := range templates {
		if len(out) >= n {
			return out
		}
		for i, line := range lines {
			if used[i] {
				continue
			}
			if _, ok := pattern.MatchTemplate(line, []pattern.Template{t}); ok {
				out = append(out, line)
				sampled = append(sampled, t)
				used[i] = true
				break
			}
		}
	}

	for i, line := range lines {
		if len(out) >= n {
			break
		}
		if used[i] || !notable(line) {
			continue
		}
		if _, ok := pattern.MatchTemplate(line, sampled); ok {
			continue
		}
		out = append(out, line)
		used[i] = true
	}
	return out
}

var notableWords = []string{"error", "fail", "denied", "timeout", "warning", "refused", "invalid"}

func notable(line string) bool {
	lower := strings.ToLower(line)
	for _, w := range notableWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
