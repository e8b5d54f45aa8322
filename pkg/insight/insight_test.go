package insight

import (
	"slices"
	"testing"

	"github.com/strrl/logsentry/pkg/stats"
)

func TestDeviations(t *testing.T) {
	s := stats.Statistics{
		TotalLines:   500,
		ErrorCount:   75,
		WarningCount: 20,
		SSHCount:     150,
		FailedCount:  25,
		TimeoutCount: 3,
	}

	got := Deviations(s)
	want := []Deviation{
		{Parameter: stats.ErrorCount, Value: 75, Threshold: 50, Percent: 50},
		{Parameter: stats.SSHCount, Value: 150, Threshold: 100, Percent: 50},
		{Parameter: stats.FailedCount, Value: 25, Threshold: 10, Percent: 150},
	}
	if !slices.Equal(got, want) {
		t.Fatalf("Deviations() = %+v\nwant %+v", got, want)
	}
}

func TestDeviationsRounding(t *testing.T) {
	got := Deviations(stats.Statistics{WarningCount: 27})
	if len(got) != 1 || got[0].Percent != 35 {
		t.Fatalf("Deviations() = %+v", got)
	}
	got = Deviations(stats.Statistics{TimeoutCount: 11})
	if len(got) != 1 || got[0].Percent != 10 {
		t.Fatalf("Deviations() = %+v", got)
	}
}

func TestDeviationsNone(t *testing.T) {
	if got := Deviations(stats.Statistics{ErrorCount: 50, WarningCount: 20}); len(got) != 0 {
		t.Fatalf("values at the mark reported: %+v", got)
	}
}

func TestCauses(t *testing.T) {
	tests := []struct {
		name  string
		focus Focus
		s     stats.Statistics
		want  []Cause
	}{
		{"brute force heavy", FocusBruteForce, stats.Statistics{SSHCount: 120}, []Cause{SecurityThreat, NetworkIssue}},
		{"brute force failed only", FocusBruteForce, stats.Statistics{FailedCount: 21}, []Cause{SecurityThreat}},
		{"brute force quiet", FocusBruteForce, stats.Statistics{SSHCount: 50}, []Cause{OperationalIssue}},
		{"auth denied", FocusAuthFailure, stats.Statistics{DeniedCount: 25}, []Cause{SecurityThreat, ConfigurationError}},
		{"auth few denied", FocusAuthFailure, stats.Statistics{DeniedCount: 6}, []Cause{ConfigurationError}},
		{"sessions", FocusSessions, stats.Statistics{TimeoutCount: 11, ConnectionCount: 101}, []Cause{NetworkIssue, ResourceExhaustion}},
		{"resources", FocusResources, stats.Statistics{WarningCount: 21}, []Cause{ResourceExhaustion, ConfigurationError}},
		{"anomaly errors", FocusAnomaly, stats.Statistics{ErrorCount: 60, WarningCount: 6}, []Cause{ApplicationError, ResourceExhaustion}},
		{"anomaly quiet", FocusAnomaly, stats.Statistics{ErrorCount: 11, WarningCount: 5}, []Cause{OperationalIssue}},
		{"unknown focus", Focus("other"), stats.Statistics{ErrorCount: 100}, []Cause{OperationalIssue}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Causes(tt.focus, tt.s); !slices.Equal(got, tt.want) {
				t.Errorf("Causes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAllCauses(t *testing.T) {
	s := stats.Statistics{SSHCount: 120, WarningCount: 8}
	got := AllCauses(s)
	want := []Cause{ConfigurationError, NetworkIssue, SecurityThreat}
	if !slices.Equal(got, want) {
		t.Fatalf("AllCauses() = %v, want %v", got, want)
	}

	if got := AllCauses(stats.Statistics{}); !slices.Equal(got, []Cause{OperationalIssue}) {
		t.Errorf("AllCauses(empty) = %v", got)
	}
}

func TestCauseDescriptions(t *testing.T) {
	for _, c := range AllCauseKinds {
		if c.Description() == "" {
			t.Errorf("%s has no description", c)
		}
		if len(c.Fixes()) == 0 {
			t.Errorf("%s has no fixes", c)
		}
	}
}

func TestParseFocus(t *testing.T) {
	f, err := ParseFocus("Brute_Force")
	if err != nil || f != FocusBruteForce {
		t.Fatalf("ParseFocus() = %v, %v", f, err)
	}
	if _, err := ParseFocus("nope"); err == nil {
		t.Fatal("expected error for unknown focus")
	}
}
