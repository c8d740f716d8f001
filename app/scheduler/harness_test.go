package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/outreach-orchestrator/app/services"
	"github.com/amirphl/outreach-orchestrator/config"
	"github.com/amirphl/outreach-orchestrator/models"
	testingutil "github.com/amirphl/outreach-orchestrator/testing"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t.UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.DispatchEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e *models.DispatchEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []*models.DispatchEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*models.DispatchEvent(nil), p.events...)
}

type harness struct {
	t         *testing.T
	ctx       context.Context
	db        *testingutil.TestDB
	fx        *testingutil.TestFixtures
	repos     Repositories
	linkedin  *services.MockChannel
	email     *services.MockChannel
	channels  *services.ChannelRegistry
	publisher *recordingPublisher
	clock     *fakeClock
	sched     *SequenceScheduler
}

// Monday 10:00 UTC
var testStart = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testingutil.NewTestDB(t)
	h := &harness{
		t:         t,
		ctx:       testingutil.CreateTestContext(),
		db:        db,
		fx:        testingutil.NewTestFixtures(db),
		repos:     NewRepositories(db.DB),
		linkedin:  services.NewMockChannel(models.ChannelLinkedIn),
		email:     services.NewMockChannel(models.ChannelEmail),
		publisher: &recordingPublisher{},
		clock:     newFakeClock(testStart),
	}
	h.channels = services.NewChannelRegistry(h.linkedin, h.email)
	h.sched = h.newScheduler()
	return h
}

func (h *harness) newScheduler() *SequenceScheduler {
	return NewSequenceScheduler(
		h.db.DB,
		h.repos,
		h.channels,
		services.NewContentComposer(nil, utils.DiscardLogger()),
		h.publisher,
		config.SchedulerConfig{Interval: time.Minute, CampaignConcurrency: 2, BatchSize: 100},
		config.RetryConfig{MaxAttempts: 3, BaseDelay: 30 * time.Second, MaxDelay: 30 * time.Minute},
		utils.DiscardLogger(),
		WithClock(h.clock.Now),
		WithArgDefaults(services.ArgDefaults{LinkedInSessionCookie: "li_at"}),
	)
}

func (h *harness) tick() {
	h.t.Helper()
	require.NoError(h.t, h.sched.RunOnce(h.ctx))
}

func (h *harness) item(id uint) *models.ApprovalItem {
	h.t.Helper()
	item, err := h.repos.Items.ByID(h.ctx, id)
	require.NoError(h.t, err)
	require.NotNil(h.t, item)
	return item
}

func (h *harness) cursor(id uint) *models.CampaignLead {
	h.t.Helper()
	cl, err := h.repos.CampaignLeads.ByID(h.ctx, id)
	require.NoError(h.t, err)
	require.NotNil(h.t, cl)
	return cl
}

func (h *harness) countSubmitted(campaignID uint) int64 {
	h.t.Helper()
	var n int64
	require.NoError(h.t, h.db.DB.Model(&models.ApprovalItem{}).
		Where("campaign_id = ? AND container_id IS NOT NULL AND container_id <> ''", campaignID).
		Count(&n).Error)
	return n
}

func (h *harness) counter(c *models.Campaign, day time.Time) int {
	h.t.Helper()
	n, err := h.repos.Counters.Get(h.ctx, c.ID, utils.LocalDay(day, c.Location()))
	require.NoError(h.t, err)
	return n
}

func pendingResult() *services.PollResult {
	return &services.PollResult{Status: services.PollStatusPending}
}

func configRetry(maxAttempts int, base, maxDelay time.Duration) config.RetryConfig {
	return config.RetryConfig{MaxAttempts: maxAttempts, BaseDelay: base, MaxDelay: maxDelay}
}
