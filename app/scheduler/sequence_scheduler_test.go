package scheduler

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/outreach-orchestrator/app/services"
	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyCapSpreadsDispatchAcrossDays(t *testing.T) {
	h := newHarness(t)
	c, items, err := h.fx.ApprovedPipeline(5, 10, models.StepTypeConnectionRequest)
	require.NoError(t, err)
	require.Len(t, items, 10)

	h.tick()
	assert.EqualValues(t, 5, h.countSubmitted(c.ID))
	assert.Equal(t, 5, h.counter(c, h.clock.Now()))

	// Later the same day nothing more goes out
	h.clock.Advance(2 * time.Hour)
	h.tick()
	assert.EqualValues(t, 5, h.countSubmitted(c.ID))
	assert.Len(t, h.linkedin.Submissions(), 5)

	var approved int64
	require.NoError(t, h.db.DB.Model(&models.ApprovalItem{}).
		Where("campaign_id = ? AND status = ?", c.ID, models.ApprovalStatusApproved).Count(&approved).Error)
	assert.EqualValues(t, 5, approved)

	h.clock.Advance(22 * time.Hour)
	h.tick()
	assert.EqualValues(t, 10, h.countSubmitted(c.ID))
	assert.Equal(t, 5, h.counter(c, h.clock.Now()))
	assert.Equal(t, 5, h.counter(c, testStart))

	// Every lead finished its single step, so the campaign completes
	h.tick()
	camp, err := h.repos.Campaigns.ByID(h.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusCompleted, camp.Status)
}

func TestApprovedItemIsQueuedWithinOneTick(t *testing.T) {
	h := newHarness(t)
	h.linkedin.SetNextResult(pendingResult())

	c, err := h.fx.CreateCampaign(0)
	require.NoError(t, err)
	step1, err := h.fx.CreateStep(c.ID, 1, models.StepTypeConnectionRequest, 0)
	require.NoError(t, err)
	_, err = h.fx.CreateStep(c.ID, 2, models.StepTypeMessage, 2)
	require.NoError(t, err)
	lead, err := h.fx.CreateLead(1, nil)
	require.NoError(t, err)
	cl, err := h.fx.EnrollLead(c.ID, lead.ID, models.CursorStatusIdle)
	require.NoError(t, err)
	item, err := h.fx.CreateApprovalItem(cl, step1, models.ApprovalStatusApproved)
	require.NoError(t, err)

	h.tick()

	got := h.item(item.ID)
	assert.Equal(t, models.ApprovalStatusQueued, got.Status)
	require.NotNil(t, got.ContainerID)
	assert.NotEmpty(t, *got.ContainerID)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, models.CursorStatusQueued, h.cursor(cl.ID).CursorStatus)

	subs := h.linkedin.Submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, services.LinkedInArgs{SessionCookie: "li_at", ProfileURL: lead.LinkedInURL, Action: services.LinkedInActionConnect}, subs[0].Args)

	// Provider reports success on the next poll
	h.linkedin.SetResult(*got.ContainerID, services.PollResult{Status: services.PollStatusSuccess})
	h.clock.Advance(time.Minute)
	h.tick()

	got = h.item(item.ID)
	assert.Equal(t, models.ApprovalStatusSent, got.Status)
	require.NotNil(t, got.SentAt)
	cur := h.cursor(cl.ID)
	assert.Equal(t, models.CursorStatusSent, cur.CursorStatus)
	assert.Equal(t, 2, cur.CurrentStepIndex)
	require.NotNil(t, cur.NextDueAt)
	assert.True(t, cur.NextDueAt.Equal(h.clock.Now().Add(48*time.Hour)))

	events := h.publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.DispatchOutcomeSent, events[0].Outcome)

	// Step 2 is drafted only once its delay has elapsed
	h.clock.Advance(24 * time.Hour)
	h.tick()
	assert.Equal(t, models.CursorStatusSent, h.cursor(cl.ID).CursorStatus)

	h.clock.Advance(25 * time.Hour)
	h.tick()
	cur = h.cursor(cl.ID)
	assert.Equal(t, models.CursorStatusAwaitingApproval, cur.CursorStatus)
	assert.Equal(t, 2, cur.CurrentStepIndex)

	latest, err := h.repos.Items.LatestForLead(h.ctx, cl.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusPending, latest.Status)
	assert.Equal(t, 2, latest.StepPosition)
	assert.Contains(t, latest.Content, lead.FirstName)
}

func TestConcurrentTicksDispatchOnce(t *testing.T) {
	h := newHarness(t)
	h.linkedin.SetNextResult(pendingResult())
	_, items, err := h.fx.ApprovedPipeline(0, 1, models.StepTypeConnectionRequest)
	require.NoError(t, err)

	other := h.newScheduler()

	var wg sync.WaitGroup
	for _, s := range []*SequenceScheduler{h.sched, other} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.RunOnce(h.ctx))
		}()
	}
	wg.Wait()

	assert.Len(t, h.linkedin.Submissions(), 1)
	got := h.item(items[0].ID)
	assert.Equal(t, models.ApprovalStatusQueued, got.Status)
	require.NotNil(t, got.ContainerID)
	assert.Equal(t, h.linkedin.Submissions()[0].JobID, *got.ContainerID)
	assert.Equal(t, 1, got.Attempts)
}

func TestRejectedItemIsNotDispatched(t *testing.T) {
	h := newHarness(t)
	c, err := h.fx.CreateCampaign(0)
	require.NoError(t, err)
	step, err := h.fx.CreateStep(c.ID, 1, models.StepTypeMessage, 0)
	require.NoError(t, err)
	_, err = h.fx.CreateStep(c.ID, 2, models.StepTypeMessage, 0)
	require.NoError(t, err)
	lead, err := h.fx.CreateLead(1, nil)
	require.NoError(t, err)
	cl, err := h.fx.EnrollLead(c.ID, lead.ID, models.CursorStatusIdle)
	require.NoError(t, err)
	item, err := h.fx.CreateApprovalItem(cl, step, models.ApprovalStatusPending)
	require.NoError(t, err)

	ok, err := h.repos.Items.TransitionStatus(h.ctx, item.ID, models.ApprovalStatusPending, models.ApprovalStatusRejected, nil)
	require.NoError(t, err)
	require.True(t, ok)
	before := h.cursor(cl.ID)

	h.tick()
	h.clock.Advance(24 * time.Hour)
	h.tick()

	assert.Empty(t, h.linkedin.Submissions())
	after := h.cursor(cl.ID)
	assert.Equal(t, models.CursorStatusAwaitingApproval, after.CursorStatus)
	assert.Equal(t, before.CurrentStepIndex, after.CurrentStepIndex)
	assert.Equal(t, models.ApprovalStatusRejected, h.item(item.ID).Status)

	n, err := h.repos.Items.Count(h.ctx, models.ApprovalItemFilter{CampaignLeadID: &cl.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestDraftingCreatesSinglePendingItem(t *testing.T) {
	h := newHarness(t)
	c, err := h.fx.CreateCampaign(0)
	require.NoError(t, err)
	_, err = h.fx.CreateStep(c.ID, 1, models.StepTypeEmail, 0)
	require.NoError(t, err)
	lead, err := h.fx.CreateLead(7, utils.ToPtr("ada7@example.com"))
	require.NoError(t, err)
	cl, err := h.fx.EnrollLead(c.ID, lead.ID, models.CursorStatusIdle)
	require.NoError(t, err)

	h.tick()
	h.tick()

	items, err := h.repos.Items.ByFilter(h.ctx, models.ApprovalItemFilter{CampaignLeadID: &cl.ID}, "id ASC", 0, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.ApprovalStatusPending, items[0].Status)
	assert.Equal(t, models.ChannelEmail, items[0].Channel)
	assert.Equal(t, "Hi Ada7, great to connect about Analytical Engines.", items[0].Content)
	require.NotNil(t, items[0].Subject)
	assert.Equal(t, "Quick question", *items[0].Subject)
	assert.False(t, items[0].AIGenerated)
	assert.Equal(t, models.CursorStatusAwaitingApproval, h.cursor(cl.ID).CursorStatus)
}

func TestLeadWithNoRemainingStepsCompletes(t *testing.T) {
	h := newHarness(t)
	c, err := h.fx.CreateCampaign(0)
	require.NoError(t, err)
	step, err := h.fx.CreateStep(c.ID, 1, models.StepTypeMessage, 0)
	require.NoError(t, err)
	lead, err := h.fx.CreateLead(1, nil)
	require.NoError(t, err)
	cl, err := h.fx.EnrollLead(c.ID, lead.ID, models.CursorStatusIdle)
	require.NoError(t, err)

	ok, err := h.repos.Steps.SoftDelete(h.ctx, c.ID, step.ID)
	require.NoError(t, err)
	require.True(t, ok)

	h.tick()
	assert.Equal(t, models.CursorStatusCompleted, h.cursor(cl.ID).CursorStatus)

	h.tick()
	camp, err := h.repos.Campaigns.ByID(h.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusCompleted, camp.Status)
}

func TestTransientSubmitFailureRetriesWithBackoff(t *testing.T) {
	h := newHarness(t)
	h.linkedin.SetNextResult(pendingResult())
	h.linkedin.FailNextSubmits(services.Transient(services.CodeNetwork, errors.New("connection reset")))
	c, items, err := h.fx.ApprovedPipeline(3, 1, models.StepTypeConnectionRequest)
	require.NoError(t, err)
	id := items[0].ID

	h.tick()
	got := h.item(id)
	assert.Equal(t, models.ApprovalStatusQueued, got.Status)
	assert.Nil(t, got.ContainerID)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.NextAttemptAt)
	assert.True(t, got.NextAttemptAt.Equal(testStart.Add(30*time.Second)))
	require.NotNil(t, got.ErrorCode)
	assert.Equal(t, services.CodeNetwork, *got.ErrorCode)
	assert.Equal(t, 1, h.counter(c, testStart))

	// Not due yet
	h.clock.Advance(10 * time.Second)
	h.tick()
	assert.Nil(t, h.item(id).ContainerID)

	h.clock.Advance(25 * time.Second)
	h.tick()
	got = h.item(id)
	require.NotNil(t, got.ContainerID)
	assert.Equal(t, 2, got.Attempts)
	assert.Nil(t, got.NextAttemptAt)
	assert.Len(t, h.linkedin.Submissions(), 1)
	// A retry does not take another slot
	assert.Equal(t, 1, h.counter(c, testStart))
}

func TestRetriesExhaustedFailsItem(t *testing.T) {
	h := newHarness(t)
	transient := services.Transient(services.CodeTimeout, errors.New("deadline"))
	h.linkedin.FailNextSubmits(transient, transient, transient)
	c, items, err := h.fx.ApprovedPipeline(3, 1, models.StepTypeConnectionRequest)
	require.NoError(t, err)
	id := items[0].ID

	h.tick()
	h.clock.Advance(31 * time.Second)
	h.tick()
	got := h.item(id)
	assert.Equal(t, 2, got.Attempts)
	require.NotNil(t, got.NextAttemptAt)
	assert.True(t, got.NextAttemptAt.Equal(h.clock.Now().Add(60*time.Second)))

	h.clock.Advance(61 * time.Second)
	h.tick()

	got = h.item(id)
	assert.Equal(t, models.ApprovalStatusFailed, got.Status)
	assert.Equal(t, 3, got.Attempts)
	require.NotNil(t, got.ErrorCode)
	assert.Equal(t, services.CodeTimeout, *got.ErrorCode)
	cur := h.cursor(got.CampaignLeadID)
	assert.Equal(t, models.CursorStatusFailed, cur.CursorStatus)
	assert.Equal(t, 0, h.counter(c, testStart))

	events := h.publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.DispatchOutcomeFailed, events[0].Outcome)
}

func TestPermanentSubmitFailure(t *testing.T) {
	h := newHarness(t)
	h.linkedin.FailNextSubmits(services.Permanent(services.CodeUnauthorized, errors.New("session expired")))
	c, items, err := h.fx.ApprovedPipeline(2, 1, models.StepTypeConnectionRequest)
	require.NoError(t, err)

	h.tick()

	got := h.item(items[0].ID)
	assert.Equal(t, models.ApprovalStatusFailed, got.Status)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.FailedAt)
	cur := h.cursor(got.CampaignLeadID)
	assert.Equal(t, models.CursorStatusFailed, cur.CursorStatus)
	assert.Equal(t, 1, cur.CurrentStepIndex)
	assert.Equal(t, 0, h.counter(c, testStart))

	events, err := h.repos.Events.ByFilter(h.ctx, models.DispatchEventFilter{CampaignID: &c.ID}, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, services.CodeUnauthorized, *events[0].ErrorCode)
}

func TestRetryableProviderFailureResubmits(t *testing.T) {
	h := newHarness(t)
	h.linkedin.SetNextResult(&services.PollResult{Status: services.PollStatusFailure, ErrorCode: "TIMEOUT", Retryable: true})
	_, items, err := h.fx.ApprovedPipeline(0, 1, models.StepTypeMessage)
	require.NoError(t, err)
	id := items[0].ID

	h.tick()
	got := h.item(id)
	assert.Equal(t, models.ApprovalStatusQueued, got.Status)
	assert.Nil(t, got.ContainerID)
	require.NotNil(t, got.NextAttemptAt)

	h.linkedin.SetNextResult(nil)
	h.clock.Advance(31 * time.Second)
	h.tick()

	got = h.item(id)
	assert.Equal(t, models.ApprovalStatusSent, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.Len(t, h.linkedin.Submissions(), 2)
}

func TestProviderFailureWithoutRetryFails(t *testing.T) {
	h := newHarness(t)
	h.linkedin.SetNextResult(&services.PollResult{Status: services.PollStatusFailure, ErrorCode: "PROFILE_NOT_FOUND"})
	c, items, err := h.fx.ApprovedPipeline(1, 2, models.StepTypeMessage)
	require.NoError(t, err)

	h.tick()

	got := h.item(items[0].ID)
	assert.Equal(t, models.ApprovalStatusFailed, got.Status)
	require.NotNil(t, got.ContainerID)
	assert.Equal(t, "PROFILE_NOT_FOUND", *got.ErrorCode)
	// The failed dispatch gave its slot back
	assert.Equal(t, 0, h.counter(c, testStart))

	h.linkedin.SetNextResult(nil)
	h.tick()
	assert.Equal(t, models.ApprovalStatusSent, h.item(items[1].ID).Status)
	assert.Equal(t, 1, h.counter(c, testStart))
}

func TestSendWindowDefersDispatch(t *testing.T) {
	h := newHarness(t)
	c, items, err := h.fx.ApprovedPipeline(0, 1, models.StepTypeMessage)
	require.NoError(t, err)
	require.NoError(t, h.db.DB.Model(&models.Campaign{}).Where("id = ?", c.ID).Updates(map[string]any{
		"window_start": "09:00",
		"window_end":   "17:00",
		"timezone":     "America/New_York",
	}).Error)

	// 10:00 UTC is 05:00 in New York
	h.tick()
	assert.Equal(t, models.ApprovalStatusApproved, h.item(items[0].ID).Status)
	assert.Empty(t, h.linkedin.Submissions())

	h.clock.Advance(5 * time.Hour)
	h.tick()
	assert.Len(t, h.linkedin.Submissions(), 1)
}

func TestPausedCampaignIsSkipped(t *testing.T) {
	h := newHarness(t)
	c, items, err := h.fx.ApprovedPipeline(0, 1, models.StepTypeMessage)
	require.NoError(t, err)
	ok, err := h.repos.Campaigns.TransitionStatus(h.ctx, c.ID,
		[]models.CampaignStatus{models.CampaignStatusActive}, models.CampaignStatusPaused, nil)
	require.NoError(t, err)
	require.True(t, ok)

	h.tick()
	assert.Equal(t, models.ApprovalStatusApproved, h.item(items[0].ID).Status)
	assert.Empty(t, h.linkedin.Submissions())
}

func TestPausedLeadKeepsApprovedItem(t *testing.T) {
	h := newHarness(t)
	_, items, err := h.fx.ApprovedPipeline(0, 1, models.StepTypeMessage)
	require.NoError(t, err)
	clID := items[0].CampaignLeadID
	ok, err := h.repos.CampaignLeads.TransitionStatus(h.ctx, clID,
		[]models.CursorStatus{models.CursorStatusAwaitingApproval}, models.CursorStatusPaused,
		map[string]any{"resume_status": string(models.CursorStatusAwaitingApproval)})
	require.NoError(t, err)
	require.True(t, ok)

	h.tick()
	assert.Equal(t, models.ApprovalStatusApproved, h.item(items[0].ID).Status)
	assert.Empty(t, h.linkedin.Submissions())
}

func TestStepIndexNeverDecreases(t *testing.T) {
	h := newHarness(t)
	c, err := h.fx.CreateCampaign(0)
	require.NoError(t, err)
	for pos := 1; pos <= 3; pos++ {
		_, err := h.fx.CreateStep(c.ID, pos, models.StepTypeMessage, 0)
		require.NoError(t, err)
	}
	lead, err := h.fx.CreateLead(1, nil)
	require.NoError(t, err)
	cl, err := h.fx.EnrollLead(c.ID, lead.ID, models.CursorStatusIdle)
	require.NoError(t, err)

	last := 0
	for i := 0; i < 12; i++ {
		h.tick()
		// Approve whatever is pending so the sequence keeps moving
		pending := models.ApprovalStatusPending
		items, err := h.repos.Items.ByFilter(h.ctx, models.ApprovalItemFilter{CampaignLeadID: &cl.ID, Status: &pending}, "", 0, 0)
		require.NoError(t, err)
		for _, it := range items {
			_, err := h.repos.Items.TransitionStatus(h.ctx, it.ID, models.ApprovalStatusPending, models.ApprovalStatusApproved,
				map[string]any{"reviewed_at": h.clock.Now()})
			require.NoError(t, err)
		}
		cur := h.cursor(cl.ID)
		assert.GreaterOrEqual(t, cur.CurrentStepIndex, last)
		last = cur.CurrentStepIndex
		h.clock.Advance(time.Minute)
	}

	cur := h.cursor(cl.ID)
	assert.Equal(t, models.CursorStatusCompleted, cur.CursorStatus)
	assert.Equal(t, 4, cur.CurrentStepIndex)
	assert.Len(t, h.linkedin.Submissions(), 3)
}

func TestStartStopsCleanly(t *testing.T) {
	h := newHarness(t)
	stop := h.sched.Start(h.ctx)
	stop()
}
