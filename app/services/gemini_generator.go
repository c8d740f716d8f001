package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/outreach-orchestrator/config"
	"github.com/amirphl/outreach-orchestrator/models"
	"google.golang.org/genai"
)

// GeminiGenerator writes outreach content with Google's Gemini API
type GeminiGenerator struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiGenerator creates a Gemini-backed content generator
func NewGeminiGenerator(ctx context.Context, cfg config.GeneratorConfig) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiGenerator{client: client, model: model, timeout: cfg.Timeout}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, req ContentRequest) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(BuildPrompt(req)), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrGeneratorUnavailable)
	}
	return text, nil
}

// BuildPrompt renders the generation prompt for req
func BuildPrompt(req ContentRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a %s outreach %s.\n", orDefault(req.Length, "short"), describeStep(req))
	fmt.Fprintf(&b, "Tone: %s.\n", orDefault(req.Tone, "professional"))
	if req.Focus != "" {
		fmt.Fprintf(&b, "Focus on: %s.\n", req.Focus)
	}
	fmt.Fprintf(&b, "Recipient: %s", orDefault(req.Target.Name, "the prospect"))
	if req.Target.Title != "" {
		fmt.Fprintf(&b, ", %s", req.Target.Title)
	}
	if req.Target.Company != "" {
		fmt.Fprintf(&b, " at %s", req.Target.Company)
	}
	b.WriteString(".\n")
	if req.Template != nil && strings.TrimSpace(*req.Template) != "" {
		fmt.Fprintf(&b, "Use this draft as a starting point:\n%s\n", RenderTemplate(*req.Template, req.Target))
	}
	b.WriteString("Return only the message body, no subject line and no placeholders.")
	return b.String()
}

func describeStep(req ContentRequest) string {
	switch req.StepType {
	case models.StepTypeConnectionRequest:
		return "LinkedIn connection note (under 300 characters)"
	case models.StepTypeEmail:
		return "email"
	case models.StepTypeSMS:
		return "SMS (under 160 characters)"
	default:
		return "LinkedIn message"
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
