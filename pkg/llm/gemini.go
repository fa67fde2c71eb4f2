package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type GeminiProvider struct {
	client    *genai.Client
	model     string
	maxTokens int
}

func NewGeminiProvider(ctx context.Context, cfg Config) (*GeminiProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("gemini model is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.APIURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.APIURL)
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiProvider{client: client, model: strings.TrimSpace(cfg.Model), maxTokens: cfg.MaxTokens}, nil
}

func (p *GeminiProvider) Complete(ctx context.Context, messages []Message) (Completion, error) {
	system, rest := splitSystem(messages)
	contents := geminiContents(rest)
	if len(contents) == 0 {
		return Completion{}, errors.New("gemini: no user content")
	}

	gc := &genai.GenerateContentConfig{CandidateCount: 1}
	if system != "" {
		gc.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if p.maxTokens > 0 {
		gc.MaxOutputTokens = int32(p.maxTokens)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, gc)
	if err != nil {
		return Completion{}, fmt.Errorf("gemini: generate content: %w", err)
	}

	out := Completion{Content: resp.Text(), Model: p.model}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

func geminiContents(messages []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}
