package insight

import (
	"strings"

	"github.com/go-errors/errors"

	"github.com/strrl/logsentry/pkg/stats"
)

// Cause is a root-cause category.
type Cause string

const (
	ResourceExhaustion Cause = "resource_exhaustion"
	ConfigurationError Cause = "configuration_error"
	NetworkIssue       Cause = "network_issue"
	SecurityThreat     Cause = "security_threat"
	ApplicationError   Cause = "application_error"
	OperationalIssue   Cause = "operational_issue"
)

// AllCauseKinds lists every category in declaration order.
var AllCauseKinds = []Cause{
	ResourceExhaustion,
	ConfigurationError,
	NetworkIssue,
	SecurityThreat,
	ApplicationError,
	OperationalIssue,
}

var causeInfo = map[Cause]struct {
	description string
	fixes       []string
}{
	ResourceExhaustion: {
		"System resources (CPU, memory, disk, connections) exceed capacity",
		[]string{"Scale CPU/RAM", "Increase thread pools", "Adjust connection limits", "Fix disk quotas"},
	},
	ConfigurationError: {
		"Misconfiguration in application or system settings",
		[]string{"Fix endpoints/ports", "Correct timeouts", "Review feature flags", "Validate credentials"},
	},
	NetworkIssue: {
		"Network connectivity, latency, or security problems",
		[]string{"Whitelist IP addresses", "Check firewall rules", "Fix TLS configuration", "Test connectivity"},
	},
	SecurityThreat: {
		"Potential security breach, attack, or unauthorized access attempt",
		[]string{"Enable rate limiting", "Block suspicious IPs", "Enable MFA", "Audit access logs"},
	},
	ApplicationError: {
		"Code-level exception, unhandled error, or logic failure",
		[]string{"Handle exceptions", "Add retries with backoff", "Validate inputs", "Review error logs"},
	},
	OperationalIssue: {
		"Service needs restart, queue cleanup, or manual intervention",
		[]string{"Restart service", "Clear stuck queues", "Re-run failed jobs", "Clear cache"},
	},
}

// Description is a one-sentence explanation of the category.
func (c Cause) Description() string { return causeInfo[c].description }

// Fixes lists typical remediations for the category.
func (c Cause) Fixes() []string {
	return append([]string(nil), causeInfo[c].fixes...)
}

// Focus is the question an analysis is asked to answer.
type Focus string

const (
	FocusAnomaly     Focus = "anomaly"
	FocusAuthFailure Focus = "auth_failure"
	FocusBruteForce  Focus = "brute_force"
	FocusSessions    Focus = "sessions"
	FocusResources   Focus = "resources"
)

// Foci lists every focus in the order AllCauses evaluates them.
var Foci = []Focus{FocusAnomaly, FocusAuthFailure, FocusBruteForce, FocusSessions, FocusResources}

// ParseFocus resolves a focus name case-insensitively.
func ParseFocus(name string) (Focus, error) {
	for _, f := range Foci {
		if strings.EqualFold(name, string(f)) {
			return f, nil
		}
	}
	return "", errors.Errorf("unknown focus %q", name)
}

// Causes returns the categories the counters of s suggest for focus. When
// no rule fires the answer is OperationalIssue.
func Causes(focus Focus, s stats.Statistics) []Cause {
	var out []Cause
	add := func(ok bool, c Cause) {
		if ok {
			out = append(out, c)
		}
	}

	switch focus {
	case FocusBruteForce:
		add(s.SSHCount > 100 || s.FailedCount > 20, SecurityThreat)
		add(s.SSHCount > 50, NetworkIssue)
	case FocusAuthFailure:
		add(s.DeniedCount > 20 || s.FailedCount > 15, SecurityThreat)
		add(s.DeniedCount > 5, ConfigurationError)
	case FocusSessions:
		add(s.TimeoutCount > 10, NetworkIssue)
		add(s.ConnectionCount > 100, ResourceExhaustion)
	case FocusResources:
		add(s.WarningCount > 20, ResourceExhaustion)
		add(s.WarningCount > 5, ConfigurationError)
	case FocusAnomaly:
		add(s.ErrorCount > 50, ApplicationError)
		add(s.ErrorCount > 10 && s.WarningCount > 5, ResourceExhaustion)
	}

	if len(out) == 0 {
		return []Cause{OperationalIssue}
	}
	return out
}

// AllCauses unions Causes over every focus. OperationalIssue appears only
// when no focus produced a specific category.
func AllCauses(s stats.Statistics) []Cause {
	seen := make(map[Cause]bool)
	for _, f := range Foci {
		for _, c := range Causes(f, s) {
			if c != OperationalIssue {
				seen[c] = true
			}
		}
	}

	var out []Cause
	for _, c := range AllCauseKinds {
		if seen[c] {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return []Cause{OperationalIssue}
	}
	return out
}
