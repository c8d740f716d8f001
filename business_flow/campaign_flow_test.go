package businessflow

import (
	"testing"

	"github.com/amirphl/outreach-orchestrator/app/dto"
	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignFlow_CreateCampaign(t *testing.T) {
	env := newFlowEnv(t)
	flow := env.campaignFlow()

	t.Run("DefaultsAndSteps", func(t *testing.T) {
		resp, err := flow.CreateCampaign(env.ctx, &dto.CreateCampaignRequest{
			Name:     "  Q3 founders  ",
			DailyCap: 25,
			Steps: []dto.AddStepRequest{
				{Type: "connection_request", Template: utils.ToPtr("Hi {{first_name}}")},
				{Type: "email", DelayDays: 3, Subject: utils.ToPtr("Following up")},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "Q3 founders", resp.Name)
		assert.Equal(t, string(models.CampaignStatusDraft), resp.Status)
		assert.Equal(t, utils.DefaultWindowStart, resp.WindowStart)
		assert.Equal(t, utils.DefaultWindowEnd, resp.WindowEnd)
		assert.Equal(t, utils.DefaultTimezone, resp.Timezone)
		require.Len(t, resp.Steps, 2)
		assert.Equal(t, 1, resp.Steps[0].Position)
		assert.Equal(t, "linkedin", resp.Steps[0].Channel)
		assert.Equal(t, 2, resp.Steps[1].Position)
		assert.Equal(t, 3, resp.Steps[1].DelayDays)
	})

	tests := []struct {
		name   string
		req    *dto.CreateCampaignRequest
		target error
	}{
		{"BlankName", &dto.CreateCampaignRequest{Name: "   "}, ErrCampaignNameRequired},
		{"NegativeCap", &dto.CreateCampaignRequest{Name: "x", DailyCap: -1}, ErrInvalidDailyCap},
		{"HalfWindow", &dto.CreateCampaignRequest{Name: "x", WindowStart: utils.ToPtr("09:00")}, ErrInvalidSendWindow},
		{"BadClock", &dto.CreateCampaignRequest{Name: "x", WindowStart: utils.ToPtr("9am"), WindowEnd: utils.ToPtr("17:00")}, ErrInvalidSendWindow},
		{"BadTimezone", &dto.CreateCampaignRequest{Name: "x", Timezone: utils.ToPtr("Mars/Olympus")}, ErrInvalidTimezone},
		{"BadStepType", &dto.CreateCampaignRequest{Name: "x", Steps: []dto.AddStepRequest{{Type: "fax"}}}, ErrInvalidStepType},
		{"NegativeDelay", &dto.CreateCampaignRequest{Name: "x", Steps: []dto.AddStepRequest{{Type: "sms", DelayDays: -2}}}, ErrInvalidStepDelay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var before int64
			require.NoError(t, env.db.DB.Model(&models.Campaign{}).Count(&before).Error)

			_, err := flow.CreateCampaign(env.ctx, tt.req)
			require.ErrorIs(t, err, tt.target)
			assert.True(t, IsValidationError(err))

			var after int64
			require.NoError(t, env.db.DB.Model(&models.Campaign{}).Count(&after).Error)
			assert.Equal(t, before, after, "nothing is written on validation failure")
		})
	}
}

func TestCampaignFlow_Lifecycle(t *testing.T) {
	env := newFlowEnv(t)
	flow := env.campaignFlow()

	created, err := flow.CreateCampaign(env.ctx, &dto.CreateCampaignRequest{Name: "lifecycle"})
	require.NoError(t, err)

	_, err = flow.LaunchCampaign(env.ctx, created.ID)
	require.ErrorIs(t, err, ErrCampaignHasNoSteps)
	assert.True(t, IsConflict(err))

	_, err = env.sequenceFlow().AddStep(env.ctx, &dto.AddStepRequest{CampaignID: created.ID, Type: "message"})
	require.NoError(t, err)

	launched, err := flow.LaunchCampaign(env.ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, string(models.CampaignStatusActive), launched.Status)

	_, err = flow.LaunchCampaign(env.ctx, created.ID)
	require.ErrorIs(t, err, ErrCampaignTransition)

	paused, err := flow.PauseCampaign(env.ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, string(models.CampaignStatusPaused), paused.Status)

	_, err = flow.PauseCampaign(env.ctx, created.ID)
	require.ErrorIs(t, err, ErrCampaignTransition)

	resumed, err := flow.ResumeCampaign(env.ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, string(models.CampaignStatusActive), resumed.Status)

	got, err := flow.GetCampaign(env.ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LaunchedAt)
	assert.Len(t, got.Steps, 1)

	_, err = flow.GetCampaign(env.ctx, 9999)
	require.ErrorIs(t, err, ErrCampaignNotFound)
	assert.True(t, IsNotFound(err))
}

func TestCampaignFlow_AddLeads(t *testing.T) {
	env := newFlowEnv(t)
	flow := env.campaignFlow()

	c, err := env.fx.CreateCampaign(3)
	require.NoError(t, err)
	existing, err := env.fx.CreateLead(1, nil)
	require.NoError(t, err)

	resp, err := flow.AddLeads(env.ctx, &dto.AddLeadsRequest{
		CampaignID: c.ID,
		LeadIDs:    []uint{existing.ID, existing.ID, 424242},
		Leads: []dto.LeadInput{
			{FirstName: "Grace", LastName: "Hopper", Company: "Navy", Email: utils.ToPtr(" Grace@Navy.mil ")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Added)
	assert.Equal(t, 1, resp.Skipped, "unknown id is skipped, duplicate id counted once")
	require.Len(t, resp.CampaignLeadIDs, 2)

	cl := env.cursor(resp.CampaignLeadIDs[1])
	assert.Equal(t, models.CursorStatusIdle, cl.CursorStatus)
	lead, err := env.leads.ByID(env.ctx, cl.LeadID)
	require.NoError(t, err)
	require.NotNil(t, lead.Email)
	assert.Equal(t, "grace@navy.mil", *lead.Email)

	again, err := flow.AddLeads(env.ctx, &dto.AddLeadsRequest{CampaignID: c.ID, LeadIDs: []uint{existing.ID}})
	require.NoError(t, err)
	assert.Zero(t, again.Added)
	assert.Equal(t, 1, again.Skipped)

	_, err = flow.AddLeads(env.ctx, &dto.AddLeadsRequest{CampaignID: c.ID})
	require.ErrorIs(t, err, ErrNoLeadsProvided)

	got, err := flow.GetCampaign(env.ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Stats)
	assert.Equal(t, int64(2), got.Stats.TotalLeads)
	assert.Equal(t, int64(2), got.Stats.LeadsByStatus["idle"])
	assert.Equal(t, "2026-03-02", got.Stats.Today)
	require.NotNil(t, got.Stats.RemainingToday)
	assert.Equal(t, 3, *got.Stats.RemainingToday)

	require.NoError(t, env.db.DB.Model(&models.Campaign{}).Where("id = ?", c.ID).Update("status", models.CampaignStatusCompleted).Error)
	_, err = flow.AddLeads(env.ctx, &dto.AddLeadsRequest{CampaignID: c.ID, LeadIDs: []uint{existing.ID}})
	require.ErrorIs(t, err, ErrCampaignCompleted)
}
