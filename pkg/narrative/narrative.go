// Package narrative asks an LLM to explain an engine result in prose:
// a root cause, the evidence for it and what to do next.
package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openrouter"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/go-errors/errors"

	llmconfig "github.com/strrl/logsentry/pkg/config"
	"github.com/strrl/logsentry/pkg/engine"
	"github.com/strrl/logsentry/pkg/insight"
	"github.com/strrl/logsentry/pkg/severity"
	"github.com/strrl/logsentry/pkg/stats"
)

// Config holds configuration for the narrator.
type Config struct {
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// Narrative is the LLM's reading of one analysis.
type Narrative struct {
	RootCause        string            `json:"root_cause"`
	Severity         severity.Severity `json:"severity"`
	Category         insight.Cause     `json:"category"`
	Evidence         []string          `json:"evidence"`
	ImmediateActions []string          `json:"immediate_actions"`
	Recommendations  []string          `json:"recommendations"`
	Model            string            `json:"model"`
}

// Narrator turns results into narratives through a chat model.
type Narrator struct {
	chat  model.BaseChatModel
	model string
}

// New creates a Narrator backed by OpenRouter.
func New(ctx context.Context, config Config) (*Narrator, error) {
	if config.APIKey == "" {
		return nil, errors.New("OPENROUTER_API_KEY environment variable is required")
	}
	if config.Model == "" {
		config.Model = llmconfig.DefaultModel
	}

	chatModel, err := openrouter.NewChatModel(ctx, &openrouter.Config{
		APIKey:     config.APIKey,
		Model:      config.Model,
		HTTPClient: config.HTTPClient,
		ResponseFormat: &openrouter.ChatCompletionResponseFormat{
			Type: openrouter.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, errors.Errorf("create chat model: %w", err)
	}
	return &Narrator{chat: chatModel, model: config.Model}, nil
}

// Narrate explains r using evidence lines from the analyzed log.
func (n *Narrator) Narrate(ctx context.Context, r engine.Result, focus insight.Focus, evidence []string) (Narrative, error) {
	prompt := buildPrompt(r, focus, evidence)

	resp, err := n.chat.Generate(ctx, []*schema.Message{
		{Role: schema.User, Content: prompt},
	})
	if err != nil {
		return Narrative{}, errors.Errorf("call LLM: %w", err)
	}

	out, err := parseResponse(resp.Content, r)
	if err != nil {
		return Narrative{}, errors.Errorf("parse LLM response: %w", err)
	}
	out.Model = n.model
	return out, nil
}

var questions = map[insight.Focus]string{
	insight.FocusAnomaly:     "Analyze anomaly in logs",
	insight.FocusAuthFailure: "Find authentication failure",
	insight.FocusBruteForce:  "Detect brute force attack patterns in sshd",
	insight.FocusSessions:    "Check abnormal user sessions",
	insight.FocusResources:   "Find resource and configuration anomalies",
}

func buildPrompt(r engine.Result, focus insight.Focus, evidence []string) string {
	question, ok := questions[focus]
	if !ok {
		question = questions[insight.FocusAnomaly]
	}

	var b strings.Builder
	fmt.Fprintf(&b, `You are an expert log analyst. Answer the question based ONLY on the evidence provided.

Question: %s

Detector findings:
  severity: %s (confidence %.2f)
  drift: %t (score %.2f)
  error rate threshold: %.4f
`, question, r.Severity, r.Confidence, r.Drift.IsDrifting, r.Drift.Score, r.Thresholds.ErrorRate)

	b.WriteString("\nCounters:\n")
	for _, k := range stats.Keys {
		if v := r.Stats.Get(k); v > 0 {
			fmt.Fprintf(&b, "  %s: %d\n", k, v)
		}
	}

	if len(r.Deviations) > 0 {
		b.WriteString("\nAbove normal:\n")
		for _, d := range r.Deviations {
			fmt.Fprintf(&b, "  %s = %d (normal <= %d, +%.1f%%)\n", d.Parameter, d.Value, d.Threshold, d.Percent)
		}
	}

	if len(r.Templates) > 0 {
		b.WriteString("\nMost frequent message templates:\n")
		for _, t := range r.Templates[:min(len(r.Templates), 10)] {
			fmt.Fprintf(&b, "  %dx %q\n", t.Hits, t.Pattern)
		}
	}

	if len(evidence) > 0 {
		b.WriteString("\nLog entries:\n")
		for _, line := range evidence {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}

	b.WriteString(`
Output ONLY a JSON object with no markdown formatting, like:
{"root_cause": "2-3 sentences", "severity": "Critical|High|Medium|Low", "category": "`)
	b.WriteString(causeList())
	b.WriteString(`", "evidence": ["log lines that support the conclusion"], "immediate_actions": ["3 specific steps"], "recommendations": ["long-term improvements"]}

Be factual and evidence-based. Do not invent information not present in the logs.`)
	return b.String()
}

func causeList() string {
	names := make([]string, len(insight.AllCauseKinds))
	for i, c := range insight.AllCauseKinds {
		names[i] = string(c)
	}
	return strings.Join(names, "|")
}

type rawNarrative struct {
	RootCause        string   `json:"root_cause"`
	Severity         string   `json:"severity"`
	Category         string   `json:"category"`
	Evidence         []string `json:"evidence"`
	ImmediateActions []string `json:"immediate_actions"`
	Recommendations  []string `json:"recommendations"`
}

const fallbackRootCause = "Analysis completed. Review evidence for detailed findings."

// parseResponse decodes the model output. Unknown severities fall back to
// the engine's, unknown categories to the engine's first cause.
func parseResponse(content string, r engine.Result) (Narrative, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var raw rawNarrative
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return Narrative{}, errors.Errorf("JSON decode (content=%q): %w", content[:min(len(content), 200)], err)
	}

	out := Narrative{
		RootCause:        strings.TrimSpace(raw.RootCause),
		Severity:         r.Severity,
		Category:         insight.OperationalIssue,
		Evidence:         raw.Evidence,
		ImmediateActions: raw.ImmediateActions,
		Recommendations:  raw.Recommendations,
	}
	if out.RootCause == "" {
		out.RootCause = fallbackRootCause
	}
	if s, err := severity.Parse(raw.Severity); err == nil {
		out.Severity = s
	}
	if len(r.Causes) > 0 {
		out.Category = r.Causes[0]
	}
	for _, c := range insight.AllCauseKinds {
		if strings.EqualFold(strings.ReplaceAll(raw.Category, " ", "_"), string(c)) {
			out.Category = c
			break
		}
	}
	return out, nil
}
