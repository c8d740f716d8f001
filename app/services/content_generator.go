package services

import (
	"context"
	"errors"
	"strings"

	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/sirupsen/logrus"
)

// ErrGeneratorUnavailable is returned by generators that cannot serve requests
var ErrGeneratorUnavailable = errors.New("content generator unavailable")

// Supported personalization parameters
var (
	Tones   = []string{"professional", "friendly", "casual", "direct"}
	Lengths = []string{"short", "medium", "long"}
)

// ContentRequest describes what to write and for whom
type ContentRequest struct {
	Target   Target
	StepType models.StepType
	Template *string
	Subject  *string
	Tone     string
	Length   string
	Focus    string
}

// ContentGenerator writes outreach copy for a single lead and step
type ContentGenerator interface {
	Generate(ctx context.Context, req ContentRequest) (string, error)
}

// ComposedContent is the output of ContentComposer.Compose
type ComposedContent struct {
	Content       string
	Subject       *string
	AIGenerated   bool
	AIUnavailable bool
}

// ContentComposer calls the generator and falls back to a deterministic
// template when it fails. It never returns an error for generator failures.
type ContentComposer struct {
	generator ContentGenerator
	logger    logrus.FieldLogger
}

// NewContentComposer creates a composer; generator may be nil
func NewContentComposer(generator ContentGenerator, logger logrus.FieldLogger) *ContentComposer {
	return &ContentComposer{generator: generator, logger: logger}
}

// Compose returns content for req. Context cancellation is the only error.
func (c *ContentComposer) Compose(ctx context.Context, req ContentRequest) (ComposedContent, error) {
	var subject *string
	if req.StepType == models.StepTypeEmail {
		s := RenderTemplate(defaultSubject(req.Subject), req.Target)
		subject = &s
	}

	if c.generator != nil {
		text, err := c.generator.Generate(ctx, req)
		if err == nil && strings.TrimSpace(text) != "" {
			return ComposedContent{Content: strings.TrimSpace(text), Subject: subject, AIGenerated: true}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ComposedContent{}, ctxErr
		}
		c.logger.WithFields(logrus.Fields{
			"lead_id":   req.Target.LeadID,
			"step_type": req.StepType,
		}).WithError(err).Warn("content generator failed, using template fallback")
	}

	return ComposedContent{
		Content:       FallbackContent(req),
		Subject:       subject,
		AIUnavailable: true,
	}, nil
}

// FallbackContent renders the step template, or the default template for the step type
func FallbackContent(req ContentRequest) string {
	tpl := ""
	if req.Template != nil {
		tpl = strings.TrimSpace(*req.Template)
	}
	if tpl == "" {
		tpl = defaultTemplate(req.StepType)
	}
	return RenderTemplate(tpl, req.Target)
}

// RenderTemplate substitutes lead placeholders such as {{first_name}} and {{company}}
func RenderTemplate(tpl string, t Target) string {
	first := t.FirstName
	if first == "" {
		first = "there"
	}
	company := t.Company
	if company == "" {
		company = "your company"
	}
	r := strings.NewReplacer(
		"{{first_name}}", first,
		"{{name}}", t.Name,
		"{{full_name}}", t.Name,
		"{{company}}", company,
		"{{title}}", t.Title,
	)
	return strings.TrimSpace(r.Replace(tpl))
}

func defaultTemplate(stepType models.StepType) string {
	switch stepType {
	case models.StepTypeConnectionRequest:
		return "Hi {{first_name}}, I came across your work at {{company}} and would love to connect."
	case models.StepTypeEmail:
		return "Hi {{first_name}},\n\nI've been following {{company}} and think there may be a fit with what we do. Would you be open to a short call next week?\n\nBest regards"
	case models.StepTypeSMS:
		return "Hi {{first_name}}, quick note about {{company}}. Do you have a minute to chat this week?"
	default:
		return "Hi {{first_name}}, thanks for connecting. I'd love to learn more about what you're working on at {{company}}."
	}
}

func defaultSubject(subject *string) string {
	if subject != nil && strings.TrimSpace(*subject) != "" {
		return *subject
	}
	return "Quick question for {{company}}"
}
