package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/outreach-orchestrator/app/scheduler"
	"github.com/amirphl/outreach-orchestrator/app/services"
	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/amirphl/outreach-orchestrator/repository"
	testingutil "github.com/amirphl/outreach-orchestrator/testing"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/stretchr/testify/require"
)

// Monday 10:00 UTC
var flowNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type stubGenerator struct {
	text  string
	err   error
	calls int
}

func (s *stubGenerator) Generate(_ context.Context, _ services.ContentRequest) (string, error) {
	s.calls++
	return s.text, s.err
}

type flowEnv struct {
	t     *testing.T
	ctx   context.Context
	db    *testingutil.TestDB
	fx    *testingutil.TestFixtures
	repos scheduler.Repositories
	leads repository.LeadRepository
}

func newFlowEnv(t *testing.T) *flowEnv {
	t.Helper()
	db := testingutil.NewTestDB(t)
	return &flowEnv{
		t:     t,
		ctx:   testingutil.CreateTestContext(),
		db:    db,
		fx:    testingutil.NewTestFixtures(db),
		repos: scheduler.NewRepositories(db.DB),
		leads: repository.NewLeadRepository(db.DB),
	}
}

func (e *flowEnv) campaignFlow() *CampaignFlowImpl {
	f := NewCampaignFlow(
		e.repos.Campaigns,
		e.repos.Steps,
		e.leads,
		e.repos.CampaignLeads,
		scheduler.NewRateGuard(e.repos.Counters),
		e.db.DB,
		utils.DiscardLogger(),
	).(*CampaignFlowImpl)
	f.now = func() time.Time { return flowNow }
	return f
}

func (e *flowEnv) sequenceFlow() SequenceFlow {
	return NewSequenceFlow(e.repos.Campaigns, e.repos.Steps, e.db.DB, utils.DiscardLogger())
}

func (e *flowEnv) approvalFlow(gen services.ContentGenerator) ApprovalFlow {
	f := NewApprovalFlow(
		e.repos.Items,
		e.repos.CampaignLeads,
		e.repos.Steps,
		services.NewContentComposer(gen, utils.DiscardLogger()),
		utils.DiscardLogger(),
	).(*ApprovalFlowImpl)
	f.now = func() time.Time { return flowNow }
	return f
}

func (e *flowEnv) leadFlow() LeadFlow {
	f := NewLeadFlow(e.repos.CampaignLeads, e.repos.Steps, e.repos.Items, utils.DiscardLogger()).(*LeadFlowImpl)
	f.now = func() time.Time { return flowNow }
	return f
}

// pendingItem builds a campaign with the given steps and one lead holding a pending item on the first
func (e *flowEnv) pendingItem(types ...models.StepType) (*models.CampaignLead, []*models.SequenceStep, *models.ApprovalItem) {
	e.t.Helper()
	c, err := e.fx.CreateCampaign(0)
	require.NoError(e.t, err)

	steps := make([]*models.SequenceStep, 0, len(types))
	for i, st := range types {
		step, err := e.fx.CreateStep(c.ID, i+1, st, i*2)
		require.NoError(e.t, err)
		steps = append(steps, step)
	}

	lead, err := e.fx.CreateLead(1, utils.ToPtr("ada1@analyticalengines.com"))
	require.NoError(e.t, err)
	cl, err := e.fx.EnrollLead(c.ID, lead.ID, models.CursorStatusIdle)
	require.NoError(e.t, err)
	item, err := e.fx.CreateApprovalItem(cl, steps[0], models.ApprovalStatusPending)
	require.NoError(e.t, err)
	return cl, steps, item
}

func (e *flowEnv) item(id uint) *models.ApprovalItem {
	e.t.Helper()
	item, err := e.repos.Items.ByID(e.ctx, id)
	require.NoError(e.t, err)
	require.NotNil(e.t, item)
	return item
}

func (e *flowEnv) cursor(id uint) *models.CampaignLead {
	e.t.Helper()
	cl, err := e.repos.CampaignLeads.ByID(e.ctx, id)
	require.NoError(e.t, err)
	require.NotNil(e.t, cl)
	return cl
}

func (e *flowEnv) setStatus(item *models.ApprovalItem, status models.ApprovalStatus) {
	e.t.Helper()
	require.NoError(e.t, e.db.DB.Model(&models.ApprovalItem{}).Where("id = ?", item.ID).Update("status", status).Error)
}

func (e *flowEnv) setCursor(cl *models.CampaignLead, status models.CursorStatus) {
	e.t.Helper()
	require.NoError(e.t, e.db.DB.Model(&models.CampaignLead{}).Where("id = ?", cl.ID).Update("cursor_status", status).Error)
}
