package services

import (
	"context"
	"errors"
	"testing"

	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	text string
	err  error
	last ContentRequest
}

func (s *stubGenerator) Generate(_ context.Context, req ContentRequest) (string, error) {
	s.last = req
	return s.text, s.err
}

func testTarget() Target {
	return Target{LeadID: 9, FirstName: "Jane", Name: "Jane Doe", Company: "Acme", Title: "CTO"}
}

func TestContentComposer_UsesGenerator(t *testing.T) {
	gen := &stubGenerator{text: "  Hi Jane, tailored note.  "}
	composer := NewContentComposer(gen, utils.DiscardLogger())

	out, err := composer.Compose(context.Background(), ContentRequest{
		Target:   testTarget(),
		StepType: models.StepTypeMessage,
		Tone:     "friendly",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi Jane, tailored note.", out.Content)
	assert.True(t, out.AIGenerated)
	assert.False(t, out.AIUnavailable)
	assert.Nil(t, out.Subject)
	assert.Equal(t, "friendly", gen.last.Tone)
}

func TestContentComposer_FallsBackWhenGeneratorFails(t *testing.T) {
	composer := NewContentComposer(&stubGenerator{err: ErrGeneratorUnavailable}, utils.DiscardLogger())

	out, err := composer.Compose(context.Background(), ContentRequest{
		Target:   testTarget(),
		StepType: models.StepTypeEmail,
		Template: utils.ToPtr("Hello {{first_name}} from {{company}}"),
	})
	require.NoError(t, err)
	assert.True(t, out.AIUnavailable)
	assert.False(t, out.AIGenerated)
	assert.Equal(t, "Hello Jane from Acme", out.Content)
	require.NotNil(t, out.Subject)
	assert.Equal(t, "Quick question for Acme", *out.Subject)
}

func TestContentComposer_EmptyGeneratorOutputFallsBack(t *testing.T) {
	composer := NewContentComposer(&stubGenerator{text: "   "}, utils.DiscardLogger())
	out, err := composer.Compose(context.Background(), ContentRequest{Target: testTarget(), StepType: models.StepTypeConnectionRequest})
	require.NoError(t, err)
	assert.True(t, out.AIUnavailable)
	assert.Contains(t, out.Content, "Jane")
}

func TestContentComposer_NoGenerator(t *testing.T) {
	composer := NewContentComposer(nil, utils.DiscardLogger())
	out, err := composer.Compose(context.Background(), ContentRequest{Target: Target{}, StepType: models.StepTypeSMS})
	require.NoError(t, err)
	assert.True(t, out.AIUnavailable)
	assert.NotEmpty(t, out.Content)
	assert.Contains(t, out.Content, "there")
}

func TestContentComposer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	composer := NewContentComposer(&stubGenerator{err: errors.New("canceled")}, utils.DiscardLogger())
	_, err := composer.Compose(ctx, ContentRequest{Target: testTarget(), StepType: models.StepTypeMessage})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(ContentRequest{
		Target:   testTarget(),
		StepType: models.StepTypeConnectionRequest,
		Tone:     "casual",
		Length:   "short",
		Focus:    "their recent funding round",
	})
	assert.Contains(t, p, "LinkedIn connection note")
	assert.Contains(t, p, "Tone: casual.")
	assert.Contains(t, p, "Focus on: their recent funding round.")
	assert.Contains(t, p, "Jane Doe, CTO at Acme")
}
