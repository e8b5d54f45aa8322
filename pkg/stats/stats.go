package stats

import "strings"

// Key names one counter of Statistics.
type Key string

const (
	TotalLines      Key = "total_lines"
	ErrorCount      Key = "error_count"
	WarningCount    Key = "warning_count"
	FailedCount     Key = "failed_count"
	TimeoutCount    Key = "timeout_count"
	SSHCount        Key = "ssh_count"
	AuthCount       Key = "auth_count"
	ConnectionCount Key = "connection_count"
	DeniedCount     Key = "denied_count"
	AcceptedCount   Key = "accepted_count"
)

// Keys lists every counter in a stable order.
var Keys = []Key{
	TotalLines,
	ErrorCount,
	WarningCount,
	FailedCount,
	TimeoutCount,
	SSHCount,
	AuthCount,
	ConnectionCount,
	DeniedCount,
	AcceptedCount,
}

// keywords maps each keyword counter to the lower-case substring it counts.
var keywords = []struct {
	key  Key
	word string
}{
	{ErrorCount, "error"},
	{WarningCount, "warning"},
	{FailedCount, "failed"},
	{TimeoutCount, "timeout"},
	{SSHCount, "ssh"},
	{AuthCount, "auth"},
	{ConnectionCount, "connection"},
	{DeniedCount, "denied"},
	{AcceptedCount, "accepted"},
}

// Statistics holds line counts derived from one cleaned log.
type Statistics struct {
	TotalLines      int `json:"total_lines"`
	ErrorCount      int `json:"error_count"`
	WarningCount    int `json:"warning_count"`
	FailedCount     int `json:"failed_count"`
	TimeoutCount    int `json:"timeout_count"`
	SSHCount        int `json:"ssh_count"`
	AuthCount       int `json:"auth_count"`
	ConnectionCount int `json:"connection_count"`
	DeniedCount     int `json:"denied_count"`
	AcceptedCount   int `json:"accepted_count"`
}

// Extract counts the non-blank lines of cleaned and, per keyword, the lines
// containing it case-insensitively. A line may count toward several keys.
func Extract(cleaned string) Statistics {
	var s Statistics
	for _, line := range strings.Split(cleaned, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		s.TotalLines++
		lower := strings.ToLower(line)
		for _, kw := range keywords {
			if strings.Contains(lower, kw.word) {
				*s.field(kw.key)++
			}
		}
	}
	return s
}

// Get returns the counter named by k, or 0 for an unknown key.
func (s Statistics) Get(k Key) int {
	if p := s.field(k); p != nil {
		return *p
	}
	return 0
}

// Map renders the counters keyed by name.
func (s Statistics) Map() map[string]int {
	m := make(map[string]int, len(Keys))
	for _, k := range Keys {
		m[string(k)] = s.Get(k)
	}
	return m
}

// Rate returns the counter k divided by total lines, treating zero lines as one.
func (s Statistics) Rate(k Key) float64 {
	return float64(s.Get(k)) / float64(max(s.TotalLines, 1))
}

func (s *Statistics) field(k Key) *int {
	switch k {
	case TotalLines:
		return &s.TotalLines
	case ErrorCount:
		return &s.ErrorCount
	case WarningCount:
		return &s.WarningCount
	case FailedCount:
		return &s.FailedCount
	case TimeoutCount:
		return &s.TimeoutCount
	case SSHCount:
		return &s.SSHCount
	case AuthCount:
		return &s.AuthCount
	case ConnectionCount:
		return &s.ConnectionCount
	case DeniedCount:
		return &s.DeniedCount
	case AcceptedCount:
		return &s.AcceptedCount
	}
	return nil
}
