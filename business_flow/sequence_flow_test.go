package businessflow

import (
	"testing"

	"github.com/amirphl/outreach-orchestrator/app/dto"
	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceFlow_AddAndRemoveSteps(t *testing.T) {
	env := newFlowEnv(t)
	flow := env.sequenceFlow()
	c, err := env.fx.CreateCampaign(0)
	require.NoError(t, err)

	first, err := flow.AddStep(env.ctx, &dto.AddStepRequest{CampaignID: c.ID, Type: "connection_request"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Position)

	second, err := flow.AddStep(env.ctx, &dto.AddStepRequest{
		CampaignID:  c.ID,
		Type:        "email",
		DelayDays:   4,
		Subject:     utils.ToPtr("  "),
		WindowStart: utils.ToPtr("22:00"),
		WindowEnd:   utils.ToPtr("06:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Position)
	assert.Nil(t, second.Subject, "blank subject is dropped")
	assert.Equal(t, "email", second.Channel)

	require.NoError(t, flow.RemoveStep(env.ctx, c.ID, second.ID))
	err = flow.RemoveStep(env.ctx, c.ID, second.ID)
	require.ErrorIs(t, err, ErrStepNotFound)

	third, err := flow.AddStep(env.ctx, &dto.AddStepRequest{CampaignID: c.ID, Type: "sms"})
	require.NoError(t, err)
	assert.Equal(t, 3, third.Position, "positions of removed steps are not reused")

	list, err := flow.ListSteps(env.ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, list.Steps, 2)
	assert.Equal(t, first.ID, list.Steps[0].ID)
	assert.Equal(t, third.ID, list.Steps[1].ID)
}

func TestSequenceFlow_AddStepValidation(t *testing.T) {
	env := newFlowEnv(t)
	flow := env.sequenceFlow()
	c, err := env.fx.CreateCampaign(0)
	require.NoError(t, err)

	tests := []struct {
		name   string
		req    dto.AddStepRequest
		target error
	}{
		{"UnknownType", dto.AddStepRequest{Type: "carrier_pigeon"}, ErrInvalidStepType},
		{"NegativeDelay", dto.AddStepRequest{Type: "message", DelayDays: -1}, ErrInvalidStepDelay},
		{"HalfWindow", dto.AddStepRequest{Type: "message", WindowEnd: utils.ToPtr("10:00")}, ErrInvalidSendWindow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.CampaignID = c.ID
			_, err := flow.AddStep(env.ctx, &tt.req)
			require.ErrorIs(t, err, tt.target)
			assert.True(t, IsValidationError(err))
		})
	}

	var count int64
	require.NoError(t, env.db.DB.Model(&models.SequenceStep{}).Where("campaign_id = ?", c.ID).Count(&count).Error)
	assert.Zero(t, count)

	_, err = flow.AddStep(env.ctx, &dto.AddStepRequest{CampaignID: 9999, Type: "message"})
	require.ErrorIs(t, err, ErrCampaignNotFound)
}
