package pattern

import "strings"

const wildcard = "<*>"

// extraDelimiters is shared by the miner and tokenize so matching splits
// lines exactly as Drain does.
var extraDelimiters = []string{"|", "=", ","}

func tokenize(s string) []string {
	for _, d := range extraDelimiters {
		s = strings.ReplaceAll(s, d, " ")
	}
	return strings.Fields(s)
}

// MatchTemplate returns the first template whose tokens equal the line's,
// treating <*> as a single-token wildcard.
func MatchTemplate(line string, templates []Template) (Template, bool) {
	tokens := tokenize(line)
	for _, t := range templates {
		if matchTokens(tokens, tokenize(t.Pattern)) {
			return t, true
		}
	}
	return Template{}, false
}

func matchTokens(line, pattern []string) bool {
	if len(line) != len(pattern) {
		return false
	}
	for i, p := range pattern {
		if p != wildcard && p != line[i] {
			return false
		}
	}
	return true
}
