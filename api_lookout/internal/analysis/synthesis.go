// Package analysis holds the LLM-backed collaborators for the synthesis and
// generation stages.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"frameworks/pkg/llm"
	"frameworks/pkg/logging"
)

// ErrNoModel is returned when no LLM provider is configured.
var ErrNoModel = errors.New("analysis: llm provider not configured")

// maxSourceChars bounds how much collected material goes into one prompt.
const maxSourceChars = 60000

// Synthesis kinds, in the order they run.
const (
	KindMaster     = "master_synthesis"
	KindBehavioral = "behavioral_synthesis"
	KindMarket     = "market_synthesis"
)

// Section is one synthesis pass.
type Section struct {
	Kind         string `json:"kind"`
	Content      string `json:"content"`
	Model        string `json:"model,omitempty"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// Synthesis is the stage 2 output, stored as synthesis.json.
type Synthesis struct {
	SessionID   string            `json:"session_id"`
	Query       string            `json:"query"`
	Context     map[string]string `json:"context,omitempty"`
	Master      Section           `json:"master"`
	Behavioral  Section           `json:"behavioral"`
	Market      Section           `json:"market"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// Input is the collected material a session hands to synthesis.
type Input struct {
	SessionID string
	Query     string
	Context   map[string]string
	Material  string
}

type Synthesizer struct {
	provider llm.Provider
	logger   logging.Logger
}

func NewSynthesizer(provider llm.Provider, logger logging.Logger) *Synthesizer {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Synthesizer{provider: provider, logger: logger}
}

// Synthesize runs the master pass, then the behavioral and market passes
// which build on it. Any failed pass fails the whole synthesis.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) (*Synthesis, error) {
	if s.provider == nil {
		return nil, ErrNoModel
	}
	log := s.logger.WithField("session_id", in.SessionID)
	material := truncate(in.Material, maxSourceChars)
	brief := describe(in.Query, in.Context)

	out := &Synthesis{SessionID: in.SessionID, Query: in.Query, Context: in.Context}

	master, err := s.pass(ctx, KindMaster, masterSystemPrompt, brief+"\n\n## Collected material\n\n"+material)
	if err != nil {
		return nil, err
	}
	out.Master = master
	log.WithField("output_tokens", master.OutputTokens).Info("Master synthesis finished")

	base := brief + "\n\n## Master synthesis\n\n" + master.Content
	if out.Behavioral, err = s.pass(ctx, KindBehavioral, behavioralSystemPrompt, base); err != nil {
		return nil, err
	}
	if out.Market, err = s.pass(ctx, KindMarket, marketSystemPrompt, base); err != nil {
		return nil, err
	}
	out.GeneratedAt = time.Now().UTC()
	log.Info("Synthesis finished")
	return out, nil
}

func (s *Synthesizer) pass(ctx context.Context, kind, system, user string) (Section, error) {
	completion, err := s.provider.Complete(ctx, []llm.Message{llm.System(system), llm.User(user)})
	if err != nil {
		completionsTotal.WithLabelValues(kind, "error").Inc()
		return Section{}, fmt.Errorf("%s: %w", kind, err)
	}
	completionsTotal.WithLabelValues(kind, "success").Inc()
	tokensTotal.WithLabelValues("input").Add(float64(completion.InputTokens))
	tokensTotal.WithLabelValues("output").Add(float64(completion.OutputTokens))
	content := strings.TrimSpace(completion.Content)
	if content == "" {
		return Section{}, fmt.Errorf("%s: empty completion", kind)
	}
	return Section{
		Kind:         kind,
		Content:      content,
		Model:        completion.Model,
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
	}, nil
}

// describe renders the query and request context as a short brief with
// context keys in a stable order.
func describe(query string, fields map[string]string) string {
	var b strings.Builder
	b.WriteString("## Research brief\n\n")
	fmt.Fprintf(&b, "- query: %s\n", query)
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if strings.TrimSpace(v) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", k, fields[k])
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "\n\n[truncated]"
}

const masterSystemPrompt = `You are a market research analyst for the Brazilian market.
Read the collected web, search API and social media material and write a
structured synthesis in Brazilian Portuguese: key insights, trends,
opportunities, and the evidence each one rests on. Use markdown.`

const behavioralSystemPrompt = `You are a consumer behavior analyst. From the
master synthesis, describe the target audience's motivations, fears,
objections and buying triggers in Brazilian Portuguese. Use markdown.`

const marketSystemPrompt = `You are a competitive strategist. From the master
synthesis, describe market size signals, competitors, pricing references and
positioning gaps in Brazilian Portuguese. Use markdown.`
