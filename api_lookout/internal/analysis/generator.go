package analysis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"frameworks/pkg/llm"
	"frameworks/pkg/logging"
)

// ModuleSpec names one generated analysis module.
type ModuleSpec struct {
	Name  string
	Title string
	Brief string
}

// Modules is the fixed set generated in stage 3, in report order.
var Modules = []ModuleSpec{
	{"market_overview", "Market Overview", "size, growth and structure of the market"},
	{"audience_avatar", "Audience Avatar", "a detailed profile of the ideal customer"},
	{"mental_drivers", "Mental Drivers", "the psychological triggers that move this audience"},
	{"objection_handling", "Objection Handling", "likely objections and how to answer each"},
	{"competitor_landscape", "Competitor Landscape", "main competitors with strengths and weaknesses"},
	{"pricing_strategy", "Pricing Strategy", "price anchors, tiers and offers"},
	{"positioning", "Positioning", "a differentiated position and value proposition"},
	{"funnel_design", "Funnel Design", "acquisition to conversion funnel stages"},
	{"content_strategy", "Content Strategy", "content pillars and formats informed by viral posts"},
	{"social_proof", "Social Proof", "proof elements and how to collect them"},
	{"keywords", "Keywords", "search keywords and intent clusters"},
	{"channel_mix", "Channel Mix", "which channels to use and the budget split"},
	{"launch_plan", "Launch Plan", "a phased go-to-market plan"},
	{"metrics_kpis", "Metrics and KPIs", "metrics to track with target values"},
	{"risks", "Risks", "market and execution risks with mitigations"},
	{"action_plan", "Action Plan", "a prioritized 90-day action plan"},
}

// ModuleCount is the number of modules a generation run attempts.
var ModuleCount = len(Modules)

const defaultModuleConcurrency = 4

// Module is one generated module. Content is empty when Error is set.
type Module struct {
	Name    string `json:"name"`
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Report is the stage 3 output.
type Report struct {
	Modules        []Module
	Successful     int
	FinalReport    string
	CompleteReport string
}

type Generator struct {
	provider    llm.Provider
	concurrency int
	logger      logging.Logger
	now         func() time.Time
}

func NewGenerator(provider llm.Provider, logger logging.Logger) *Generator {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Generator{provider: provider, concurrency: defaultModuleConcurrency, logger: logger, now: time.Now}
}

// Generate produces every module with at most four in flight. A failed
// module is recorded and skipped in the reports; generation fails only
// when no module succeeds.
func (g *Generator) Generate(ctx context.Context, syn *Synthesis) (*Report, error) {
	if g.provider == nil {
		return nil, ErrNoModel
	}
	if syn == nil {
		return nil, fmt.Errorf("analysis: synthesis is required")
	}
	log := g.logger.WithField("session_id", syn.SessionID)

	modules := make([]Module, len(Modules))
	var mu sync.Mutex
	successful := 0

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for i, spec := range Modules {
		eg.Go(func() error {
			content, err := g.module(egCtx, spec, syn)
			m := Module{Name: spec.Name, Title: spec.Title}
			if err != nil {
				m.Error = err.Error()
				log.WithError(err).WithField("module", spec.Name).Warn("Module generation failed")
			} else {
				m.Content = content
				mu.Lock()
				successful++
				mu.Unlock()
			}
			modules[i] = m
			return nil
		})
	}
	_ = eg.Wait()

	if successful == 0 {
		return nil, fmt.Errorf("analysis: all %d modules failed", len(Modules))
	}
	log.WithField("modules", fmt.Sprintf("%d/%d", successful, len(Modules))).Info("Module generation finished")

	final := g.finalReport(syn, modules)
	return &Report{
		Modules:        modules,
		Successful:     successful,
		FinalReport:    final,
		CompleteReport: completeReport(final, syn),
	}, nil
}

func (g *Generator) module(ctx context.Context, spec ModuleSpec, syn *Synthesis) (string, error) {
	system := fmt.Sprintf("You write the %q module of a market analysis: %s. "+
		"Write in Brazilian Portuguese using markdown. Do not repeat the module title.", spec.Title, spec.Brief)
	var user strings.Builder
	user.WriteString(describe(syn.Query, syn.Context))
	for _, sec := range []Section{syn.Master, syn.Behavioral, syn.Market} {
		if sec.Content == "" {
			continue
		}
		fmt.Fprintf(&user, "\n\n## %s\n\n%s", sec.Kind, sec.Content)
	}
	completion, err := g.provider.Complete(ctx, []llm.Message{llm.System(system), llm.User(user.String())})
	if err != nil {
		completionsTotal.WithLabelValues("module", "error").Inc()
		return "", err
	}
	completionsTotal.WithLabelValues("module", "success").Inc()
	tokensTotal.WithLabelValues("input").Add(float64(completion.InputTokens))
	tokensTotal.WithLabelValues("output").Add(float64(completion.OutputTokens))
	content := strings.TrimSpace(completion.Content)
	if content == "" {
		return "", fmt.Errorf("empty completion")
	}
	return content, nil
}

// ModuleMarkdown renders a module as a standalone document.
func ModuleMarkdown(m Module) string {
	return "# " + m.Title + "\n\n" + m.Content + "\n"
}

func (g *Generator) finalReport(syn *Synthesis, modules []Module) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Market Analysis: %s\n\n", syn.Query)
	fmt.Fprintf(&b, "Session `%s`, generated %s.\n\n", syn.SessionID, g.now().UTC().Format(time.RFC3339))
	b.WriteString("## Contents\n\n")
	for _, m := range modules {
		if m.Error == "" {
			fmt.Fprintf(&b, "- [%s](#%s)\n", m.Title, anchor(m.Title))
		}
	}
	for _, m := range modules {
		if m.Error != "" {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", m.Title, m.Content)
	}
	return b.String()
}

func completeReport(final string, syn *Synthesis) string {
	var b strings.Builder
	b.WriteString(final)
	b.WriteString("\n---\n\n# Appendix: Synthesis\n")
	for _, sec := range []Section{syn.Master, syn.Behavioral, syn.Market} {
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", sec.Kind, sec.Content)
	}
	return b.String()
}

func anchor(title string) string {
	return strings.ReplaceAll(strings.ToLower(title), " ", "-")
}
