package businessflow

import (
	"testing"

	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadFlow_RetryLead(t *testing.T) {
	t.Run("AfterRejection", func(t *testing.T) {
		env := newFlowEnv(t)
		cl, _, item := env.pendingItem(models.StepTypeMessage, models.StepTypeEmail)
		flow := env.leadFlow()

		_, err := flow.RetryLead(env.ctx, cl.ID)
		require.ErrorIs(t, err, ErrLeadNotRetryable, "pending item is still under review")

		env.setStatus(item, models.ApprovalStatusRejected)
		resp, err := flow.RetryLead(env.ctx, cl.ID)
		require.NoError(t, err)
		assert.Equal(t, string(models.CursorStatusAwaitingContent), resp.Lead.CursorStatus)
		assert.Equal(t, 1, resp.Lead.CurrentStepIndex)
		assert.Nil(t, resp.Lead.NextDueAt)
	})

	t.Run("AfterFailure", func(t *testing.T) {
		env := newFlowEnv(t)
		cl, _, item := env.pendingItem(models.StepTypeMessage)
		env.setStatus(item, models.ApprovalStatusFailed)
		env.setCursor(cl, models.CursorStatusFailed)

		resp, err := env.leadFlow().RetryLead(env.ctx, cl.ID)
		require.NoError(t, err)
		assert.Equal(t, string(models.CursorStatusAwaitingContent), resp.Lead.CursorStatus)
		assert.Nil(t, resp.Lead.LastError)
	})

	t.Run("NotFound", func(t *testing.T) {
		env := newFlowEnv(t)
		_, err := env.leadFlow().RetryLead(env.ctx, 9999)
		require.ErrorIs(t, err, ErrCampaignLeadNotFound)
	})
}

func TestLeadFlow_SkipStep(t *testing.T) {
	t.Run("MovesToNextStep", func(t *testing.T) {
		env := newFlowEnv(t)
		cl, steps, item := env.pendingItem(models.StepTypeMessage, models.StepTypeEmail)
		env.setStatus(item, models.ApprovalStatusRejected)

		resp, err := env.leadFlow().SkipStep(env.ctx, cl.ID)
		require.NoError(t, err)
		assert.Equal(t, string(models.CursorStatusIdle), resp.Lead.CursorStatus)
		assert.Equal(t, steps[1].Position, resp.Lead.CurrentStepIndex)

		stored := env.cursor(cl.ID)
		require.NotNil(t, stored.NextDueAt)
		assert.True(t, stored.NextDueAt.Equal(utils.AddDays(flowNow, steps[1].DelayDays)))
		assert.Equal(t, models.ApprovalStatusRejected, env.item(item.ID).Status, "skipping never sends")
	})

	t.Run("LastStepCompletes", func(t *testing.T) {
		env := newFlowEnv(t)
		cl, _, item := env.pendingItem(models.StepTypeSMS)
		env.setStatus(item, models.ApprovalStatusFailed)
		env.setCursor(cl, models.CursorStatusFailed)

		resp, err := env.leadFlow().SkipStep(env.ctx, cl.ID)
		require.NoError(t, err)
		assert.Equal(t, string(models.CursorStatusCompleted), resp.Lead.CursorStatus)
		assert.NotNil(t, resp.Lead.CompletedAt)
	})

	t.Run("RejectsHealthyLead", func(t *testing.T) {
		env := newFlowEnv(t)
		cl, _, _ := env.pendingItem(models.StepTypeMessage)
		env.setCursor(cl, models.CursorStatusQueued)

		_, err := env.leadFlow().SkipStep(env.ctx, cl.ID)
		require.ErrorIs(t, err, ErrLeadNotRetryable)
		assert.True(t, IsConflict(err))
	})
}

func TestLeadFlow_PauseResume(t *testing.T) {
	env := newFlowEnv(t)
	cl, _, _ := env.pendingItem(models.StepTypeMessage)
	flow := env.leadFlow()

	_, err := flow.ResumeLead(env.ctx, cl.ID)
	require.ErrorIs(t, err, ErrLeadNotPaused)

	paused, err := flow.PauseLead(env.ctx, cl.ID)
	require.NoError(t, err)
	assert.Equal(t, string(models.CursorStatusPaused), paused.Lead.CursorStatus)
	require.NotNil(t, paused.Lead.ResumeStatus)
	assert.Equal(t, string(models.CursorStatusAwaitingApproval), *paused.Lead.ResumeStatus)

	_, err = flow.PauseLead(env.ctx, cl.ID)
	require.ErrorIs(t, err, ErrLeadNotPausable)

	resumed, err := flow.ResumeLead(env.ctx, cl.ID)
	require.NoError(t, err)
	assert.Equal(t, string(models.CursorStatusAwaitingApproval), resumed.Lead.CursorStatus)
	assert.Nil(t, resumed.Lead.ResumeStatus)

	env.setCursor(cl, models.CursorStatusCompleted)
	_, err = flow.PauseLead(env.ctx, cl.ID)
	require.ErrorIs(t, err, ErrLeadNotPausable)
}
