package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/strrl/logsentry/pkg/insight"
	"github.com/strrl/logsentry/pkg/learning"
	"github.com/strrl/logsentry/pkg/severity"
	"github.com/strrl/logsentry/pkg/stats"
	"github.com/strrl/logsentry/pkg/threshold"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return New(append([]Option{WithClock(func() time.Time { return t0 })}, opts...)...)
}

func repeat(line string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = line
	}
	return out
}

// sshAttackLog has 120 lines: 60 mention ssh, 25 failed logins that are
// also errors, and 30 warnings.
func sshAttackLog() string {
	var lines []string
	lines = append(lines, repeat("2024-05-01 10:00:01 sshd[812]: error: Failed password for root from 203.0.113.9 port 22 ssh2", 25)...)
	lines = append(lines, repeat("2024-05-01 10:00:02 sshd[813]: Accepted publickey for deploy from 10.0.0.6 port 50122", 35)...)
	lines = append(lines, repeat("2024-05-01 10:00:03 kernel: warning: disk usage at 91%", 30)...)
	lines = append(lines, repeat("2024-05-01 10:00:04 CRON[900]: job finished", 30)...)
	return strings.Join(lines, "\n")
}

func quietLog() string {
	var lines []string
	lines = append(lines, repeat("2024-05-01 11:00:00 app: request served", 95)...)
	lines = append(lines, repeat("2024-05-01 11:00:01 app: error talking to cache", 5)...)
	return strings.Join(lines, "\n")
}

func TestAnalyze_FirstCallHasNoDrift(t *testing.T) {
	e := newTestEngine(t)
	r := e.AnalyzeString(sshAttackLog(), nil)

	if r.Drift.IsDrifting || r.Drift.Score != 0 {
		t.Errorf("first call drift = %+v", r.Drift)
	}
	if !r.Learning.BaselineEstablished {
		t.Error("baseline not established after first call")
	}
	if r.CallCount != 1 {
		t.Errorf("call count = %d, want 1", r.CallCount)
	}
}

func TestAnalyze_SSHAttackScenario(t *testing.T) {
	e := newTestEngine(t)
	r := e.AnalyzeString(sshAttackLog(), nil)

	if r.Stats.TotalLines != 120 || r.Stats.SSHCount != 60 || r.Stats.FailedCount != 25 {
		t.Fatalf("stats = %+v", r.Stats)
	}
	if r.Severity != severity.High && r.Severity != severity.Critical {
		t.Errorf("severity = %s, want High or Critical", r.Severity)
	}
	if r.Confidence <= 0.8 {
		t.Errorf("confidence = %v, want > 0.8", r.Confidence)
	}
	if r.Thresholds.ErrorRate <= threshold.DefaultState().ErrorRate {
		t.Errorf("error threshold = %v, expected it to ratchet up", r.Thresholds.ErrorRate)
	}

	var failed *insight.Deviation
	for i := range r.Deviations {
		if r.Deviations[i].Parameter == stats.FailedCount {
			failed = &r.Deviations[i]
		}
	}
	if failed == nil || failed.Percent != 150 {
		t.Errorf("failed_count deviation = %+v", failed)
	}
	if len(r.Causes) == 0 || r.Causes[0] == insight.OperationalIssue {
		t.Errorf("causes = %v", r.Causes)
	}
	if len(r.Templates) == 0 {
		t.Error("expected mined templates")
	}
}

func TestAnalyze_IdenticalCallsAreStable(t *testing.T) {
	e := newTestEngine(t)
	first := e.AnalyzeString(quietLog(), nil)
	second := e.AnalyzeString(quietLog(), nil)

	if second.Drift.IsDrifting || second.Drift.Score != 0 {
		t.Errorf("second call drift = %+v", second.Drift)
	}
	if first.Thresholds.ErrorRate != second.Thresholds.ErrorRate {
		t.Errorf("error threshold moved: %v -> %v", first.Thresholds.ErrorRate, second.Thresholds.ErrorRate)
	}
	if first.ContentHash != second.ContentHash || first.ID == second.ID {
		t.Errorf("hash/id: %s %s / %s %s", first.ContentHash, second.ContentHash, first.ID, second.ID)
	}
	if second.Learning.ThresholdAdjustments != 2 {
		t.Errorf("threshold adjustments = %d, want 2", second.Learning.ThresholdAdjustments)
	}
}

func TestAnalyze_DriftAfterSpike(t *testing.T) {
	e := newTestEngine(t)
	e.AnalyzeString(quietLog(), nil)
	r := e.AnalyzeString(sshAttackLog(), nil)
	if !r.Drift.IsDrifting {
		t.Errorf("expected drift, got %+v", r.Drift)
	}
}

func TestAnalyze_PatternConfidence(t *testing.T) {
	e := newTestEngine(t)

	if got := e.PatternConfidence(learning.KindIPAddress, "203.0.113.9"); got != 0.5 {
		t.Fatalf("unseen confidence = %v, want 0.5", got)
	}

	e.AnalyzeString("2024-05-01 10:00:00 ERROR DB-5001 from 192.168.1.10\n2024-05-01 10:00:01 ERROR DB-5001 from 192.168.1.10", nil)

	// One observation per unique value per call.
	if got := e.PatternConfidence(learning.KindIPAddress, "192.168.1.10"); got != 0.01 {
		t.Errorf("ip confidence = %v, want 0.01", got)
	}
	if got := e.PatternConfidence(learning.KindErrorCode, "DB-5001"); got != 0 {
		t.Errorf("error code confidence = %v, want 0", got)
	}
	if got := len(e.Patterns(learning.KindSeverityLevel)); got != 1 {
		t.Errorf("severity patterns = %d, want 1", got)
	}
}

func TestAnalyze_CorruptedInput(t *testing.T) {
	e := newTestEngine(t)
	raw := []byte("2024-05-01 10:00:00 ok\n\x00\x00 truncated error\n\x01\x02bad warning\n\n")
	r := e.Analyze(raw, nil)

	if r.Corruption.TruncatedLines != 1 || r.Corruption.CorruptedLines != 1 {
		t.Errorf("corruption = %+v", r.Corruption)
	}
	if r.Stats.ErrorCount != 1 || r.Stats.WarningCount != 1 {
		t.Errorf("stats = %+v", r.Stats)
	}
	if r.ContentHash != ContentHash(raw) {
		t.Error("content hash not computed from raw bytes")
	}
}

func TestAnalyze_EmptyInput(t *testing.T) {
	e := newTestEngine(t)
	r := e.Analyze(nil, nil)
	if r.Stats.TotalLines != 0 || r.Severity != severity.Low || r.Confidence != 0 {
		t.Errorf("empty result = %+v", r)
	}
	if len(r.Templates) != 0 {
		t.Errorf("templates = %+v", r.Templates)
	}
}

func TestAnalyze_FeedbackLowersLearningRate(t *testing.T) {
	e := newTestEngine(t)
	fb := &threshold.Feedback{Precision: 0.9, Recall: 0.85}
	var r Result
	for i := 0; i < 200; i++ {
		r = e.AnalyzeString(quietLog(), fb)
	}
	if r.Thresholds.LearningRate != threshold.MinLearningRate {
		t.Errorf("learning rate = %v, want floor %v", r.Thresholds.LearningRate, threshold.MinLearningRate)
	}
}

type recorder struct {
	mu      sync.Mutex
	results []Result
}

func (r *recorder) Record(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func TestAnalyze_Concurrent(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(t, WithRecorder(rec))

	const workers, perWorker = 8, 10
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				e.AnalyzeString(fmt.Sprintf("2024-05-01 10:00:00 worker %d error %d\n", w, i), nil)
			}
		}(w)
	}
	wg.Wait()

	if got := e.CallCount(); got != workers*perWorker {
		t.Fatalf("call count = %d, want %d", got, workers*perWorker)
	}
	seen := make(map[int]bool)
	for _, r := range rec.results {
		if seen[r.CallCount] {
			t.Fatalf("duplicate call count %d", r.CallCount)
		}
		seen[r.CallCount] = true
	}
	if len(seen) != workers*perWorker {
		t.Errorf("recorded %d results, want %d", len(seen), workers*perWorker)
	}
}

func TestAnalyze_RecorderSeesCallOrder(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(t, WithRecorder(rec))

	var wg sync.WaitGroup
	for w := 0; w < 6; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 15; i++ {
				e.AnalyzeString(fmt.Sprintf("worker %d warning %d\n", w, i), nil)
			}
		}(w)
	}
	wg.Wait()

	if len(rec.results) != 90 {
		t.Fatalf("recorded %d results, want 90", len(rec.results))
	}
	for i, r := range rec.results {
		if r.CallCount != i+1 {
			t.Fatalf("result %d has call count %d; recorder saw calls out of order", i, r.CallCount)
		}
		if r.ContentHash == "" {
			t.Fatalf("result %d recorded without content hash", i)
		}
	}
}

func TestResult_JSONRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	e.AnalyzeString(quietLog(), nil)
	r := e.AnalyzeString(sshAttackLog(), &threshold.Feedback{Precision: 0.7, Recall: 0.6})

	first, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Result
	if err := json.Unmarshal(first, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	second, err := json.Marshal(back)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("round trip changed result:\n%s\n%s", first, second)
	}

	if back.ID != r.ID || back.Severity != r.Severity || back.Confidence != r.Confidence {
		t.Errorf("fields differ: %+v vs %+v", back, r)
	}
	if back.Thresholds.SeverityWeights[severity.Critical] != 1.0 {
		t.Errorf("weights = %v", back.Thresholds.SeverityWeights)
	}
	if !back.AnalyzedAt.Equal(r.AnalyzedAt) {
		t.Errorf("analyzed_at = %v, want %v", back.AnalyzedAt, r.AnalyzedAt)
	}
	if !strings.Contains(string(first), `"severity":"`+r.Severity.String()+`"`) {
		t.Errorf("severity not encoded by name: %s", first)
	}
}

func TestSnapshotRestore(t *testing.T) {
	e := newTestEngine(t)
	e.AnalyzeString(quietLog(), nil)
	e.AnalyzeString(sshAttackLog(), nil)

	data, err := json.Marshal(e.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	restored := newTestEngine(t)
	if err := restored.Restore(st); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.CallCount() != 2 {
		t.Errorf("call count = %d, want 2", restored.CallCount())
	}
	if restored.Thresholds().ErrorRate != e.Thresholds().ErrorRate {
		t.Errorf("error threshold = %v, want %v", restored.Thresholds().ErrorRate, e.Thresholds().ErrorRate)
	}

	a := e.AnalyzeString(quietLog(), nil)
	b := restored.AnalyzeString(quietLog(), nil)
	if a.Drift != b.Drift || a.Severity != b.Severity || a.CallCount != b.CallCount {
		t.Errorf("restored engine diverged: %+v / %+v", a.Drift, b.Drift)
	}
	if a.Learning.PatternMemorySize != b.Learning.PatternMemorySize {
		t.Errorf("pattern memory %d vs %d", a.Learning.PatternMemorySize, b.Learning.PatternMemorySize)
	}
}

func TestRestore_RejectsUnknownVersion(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Restore(State{Version: 99}); err == nil {
		t.Fatal("expected error for unknown version")
	}
	if err := e.Restore(State{Version: StateVersion, CallCount: -1}); err == nil {
		t.Fatal("expected error for negative call count")
	}
}

func TestWithoutTemplates(t *testing.T) {
	e := newTestEngine(t, WithoutTemplates())
	if r := e.AnalyzeString(quietLog(), nil); r.Templates != nil {
		t.Errorf("templates = %+v", r.Templates)
	}
}

func TestContentHash(t *testing.T) {
	const emptySHA = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := ContentHash(nil); got != emptySHA {
		t.Errorf("ContentHash(nil) = %s", got)
	}
}
