package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/amirphl/outreach-orchestrator/app/services"
	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/amirphl/outreach-orchestrator/repository"
	testingutil "github.com/amirphl/outreach-orchestrator/testing"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// funcScraper delegates to fn with a 1-based call number
type funcScraper struct {
	mu    sync.Mutex
	calls int
	fn    func(n int, target services.Target) (services.ScrapedContact, error)
}

func (s *funcScraper) Scrape(_ context.Context, target services.Target) (services.ScrapedContact, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()
	return s.fn(n, target)
}

func foundEmail(target services.Target) services.ScrapedContact {
	email := fmt.Sprintf("lead%d@example.com", target.LeadID)
	return services.ScrapedContact{Email: &email}
}

type scrapeEnv struct {
	ctx   context.Context
	db    *testingutil.TestDB
	fx    *testingutil.TestFixtures
	jobs  repository.ScrapeJobRepository
	leads repository.LeadRepository
}

func newScrapeEnv(t *testing.T) *scrapeEnv {
	t.Helper()
	db := testingutil.NewTestDB(t)
	return &scrapeEnv{
		ctx:   testingutil.CreateTestContext(),
		db:    db,
		fx:    testingutil.NewTestFixtures(db),
		jobs:  repository.NewScrapeJobRepository(db.DB),
		leads: repository.NewLeadRepository(db.DB),
	}
}

func (e *scrapeEnv) manager(scraper services.ContactScraper, concurrency int) *ScrapeManager {
	return NewScrapeManager(e.jobs, e.leads, scraper, concurrency, utils.DiscardLogger())
}

func (e *scrapeEnv) createLeads(t *testing.T, n int) []uint {
	t.Helper()
	ids := make([]uint, 0, n)
	for i := 1; i <= n; i++ {
		l, err := e.fx.CreateLead(i, nil)
		require.NoError(t, err)
		ids = append(ids, l.ID)
	}
	return ids
}

func assertCountersConsistent(t *testing.T, p Progress) {
	t.Helper()
	assert.LessOrEqual(t, p.Processed, p.Total)
	assert.Equal(t, p.Processed, p.Found+p.Skipped+p.AlreadyHad)
}

func TestScrapeJob_CancelAfterFiveLeads(t *testing.T) {
	env := newScrapeEnv(t)
	ids := env.createLeads(t, 20)

	var m *ScrapeManager
	var jobID string
	var once sync.Once
	started := make(chan struct{})
	scraper := &funcScraper{fn: func(n int, target services.Target) (services.ScrapedContact, error) {
		if n == 5 {
			<-started
			once.Do(func() {
				_, err := m.Cancel(env.ctx, jobID)
				assert.NoError(t, err)
			})
		}
		if n%2 == 0 {
			return services.ScrapedContact{}, nil
		}
		return foundEmail(target), nil
	}}
	m = env.manager(scraper, 1)
	defer m.Close()

	job, err := m.Start(env.ctx, StartRequest{LeadIDs: ids})
	require.NoError(t, err)
	jobID = job.ID
	close(started)
	m.Wait()

	p, err := m.Poll(env.ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScrapeJobStatusCancelled, p.Status)
	assert.Equal(t, 20, p.Total)
	assert.GreaterOrEqual(t, p.Processed, 5)
	assert.LessOrEqual(t, p.Processed, 6)
	assertCountersConsistent(t, p)

	// completed work is kept
	leads, err := env.leads.ByIDs(env.ctx, ids)
	require.NoError(t, err)
	withEmail := 0
	for _, l := range leads {
		if l.Email != nil {
			withEmail++
		}
	}
	assert.Equal(t, p.Found, withEmail)
}

func TestScrapeJob_CompletesWithCounters(t *testing.T) {
	env := newScrapeEnv(t)

	has, err := env.fx.CreateLead(1, utils.ToPtr("known@example.com"))
	require.NoError(t, err)
	noProfile, err := env.fx.CreateLead(2, nil)
	require.NoError(t, err)
	require.NoError(t, env.db.DB.Model(noProfile).Update("linkedin_url", "").Error)
	found1, err := env.fx.CreateLead(3, nil)
	require.NoError(t, err)
	found2, err := env.fx.CreateLead(4, nil)
	require.NoError(t, err)

	scraper := &services.MockScraper{}
	m := env.manager(scraper, 2)
	defer m.Close()

	job, err := m.Start(env.ctx, StartRequest{LeadIDs: []uint{has.ID, noProfile.ID, found1.ID, found2.ID, found2.ID, 9999}})
	require.NoError(t, err)
	assert.Equal(t, models.ScrapeJobStatusRunning, job.Status)
	assert.Equal(t, 4, job.Total)
	m.Wait()

	p, err := m.Poll(env.ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScrapeJobStatusCompleted, p.Status)
	assert.Equal(t, 4, p.Processed)
	assert.Equal(t, 2, p.Found)
	assert.Equal(t, 1, p.Skipped)
	assert.Equal(t, 1, p.AlreadyHad)
	assert.InDelta(t, 1.0, p.Progress, 1e-9)
	assert.Equal(t, 3, scraper.Calls())

	lead, err := env.leads.ByID(env.ctx, found1.ID)
	require.NoError(t, err)
	require.NotNil(t, lead.Email)
	assert.Equal(t, "ada3@analyticalengines.com", *lead.Email)
	assert.NotNil(t, lead.ScrapedAt)
}

func TestScrapeJob_MissingOnly(t *testing.T) {
	env := newScrapeEnv(t)
	_, err := env.fx.CreateLead(1, utils.ToPtr("known@example.com"))
	require.NoError(t, err)
	env.createLeads(t, 3)

	m := env.manager(&services.MockScraper{}, 1)
	defer m.Close()

	job, err := m.Start(env.ctx, StartRequest{MissingOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 3, job.Total)
	m.Wait()

	p, err := m.Poll(env.ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScrapeJobStatusCompleted, p.Status)
	assert.Equal(t, 3, p.Found)
	assert.Zero(t, p.AlreadyHad)
}

func TestScrapeJob_EmptyTargetCompletes(t *testing.T) {
	env := newScrapeEnv(t)
	m := env.manager(&services.MockScraper{}, 1)
	defer m.Close()

	job, err := m.Start(env.ctx, StartRequest{LeadIDs: []uint{42}})
	require.NoError(t, err)
	m.Wait()

	p, err := m.Poll(env.ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScrapeJobStatusCompleted, p.Status)
	assert.Zero(t, p.Total)
	assert.InDelta(t, 1.0, p.Progress, 1e-9)
}

func TestScrapeJob_PerLeadErrorIsSkipped(t *testing.T) {
	env := newScrapeEnv(t)
	ids := env.createLeads(t, 4)

	scraper := &funcScraper{fn: func(n int, target services.Target) (services.ScrapedContact, error) {
		if n == 2 {
			return services.ScrapedContact{}, errors.New("profile is private")
		}
		return foundEmail(target), nil
	}}
	m := env.manager(scraper, 1)
	defer m.Close()

	job, err := m.Start(env.ctx, StartRequest{LeadIDs: ids})
	require.NoError(t, err)
	m.Wait()

	p, err := m.Poll(env.ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScrapeJobStatusCompleted, p.Status)
	assert.Equal(t, 3, p.Found)
	assert.Equal(t, 1, p.Skipped)
	assertCountersConsistent(t, p)
}

func TestScrapeJob_UnavailableScraperFailsJob(t *testing.T) {
	env := newScrapeEnv(t)
	ids := env.createLeads(t, 6)

	scraper := &funcScraper{fn: func(n int, target services.Target) (services.ScrapedContact, error) {
		if n >= 3 {
			return services.ScrapedContact{}, fmt.Errorf("%w: connection refused", services.ErrScraperUnavailable)
		}
		return foundEmail(target), nil
	}}
	m := env.manager(scraper, 1)
	defer m.Close()

	job, err := m.Start(env.ctx, StartRequest{LeadIDs: ids})
	require.NoError(t, err)
	m.Wait()

	p, err := m.Poll(env.ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScrapeJobStatusError, p.Status)
	assert.Equal(t, 2, p.Processed)
	require.NotNil(t, p.Error)
	assert.Contains(t, *p.Error, "unavailable")
	assertCountersConsistent(t, p)
}

func TestScrapeJob_ProcessedNeverExceedsTotal(t *testing.T) {
	env := newScrapeEnv(t)
	ids := env.createLeads(t, 12)

	m := env.manager(&services.MockScraper{}, 4)
	defer m.Close()

	job, err := m.Start(env.ctx, StartRequest{LeadIDs: ids})
	require.NoError(t, err)
	m.Wait()

	// extra increments are refused once processed reaches total
	ok, err := env.jobs.RecordResult(env.ctx, job.ID, models.ScrapeResultFound)
	require.NoError(t, err)
	assert.False(t, ok)

	p, err := m.Poll(env.ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, p.Processed)
	assertCountersConsistent(t, p)
}

func TestScrapeManager_CancelErrors(t *testing.T) {
	env := newScrapeEnv(t)
	m := env.manager(&services.MockScraper{}, 1)
	defer m.Close()

	_, err := m.Cancel(env.ctx, "missing")
	assert.ErrorIs(t, err, ErrScrapeJobNotFound)

	_, err = m.Poll(env.ctx, "missing")
	assert.ErrorIs(t, err, ErrScrapeJobNotFound)

	job, err := m.Start(env.ctx, StartRequest{})
	require.NoError(t, err)
	m.Wait()

	_, err = m.Cancel(env.ctx, job.ID)
	assert.ErrorIs(t, err, ErrScrapeJobNotRunning)
}

func TestScrapeManager_RecoverInterrupted(t *testing.T) {
	env := newScrapeEnv(t)
	orphan := &models.ScrapeJob{Total: 5, Processed: 2, Skipped: 2}
	require.NoError(t, env.jobs.Save(env.ctx, orphan))

	m := env.manager(&services.MockScraper{}, 1)
	defer m.Close()

	n, err := m.RecoverInterrupted(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	p, err := m.Poll(env.ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScrapeJobStatusError, p.Status)
	require.NotNil(t, p.Error)
	assert.Equal(t, "interrupted", *p.Error)
	assert.Equal(t, 2, p.Processed)
}

func TestScrapeManager_CloseRejectsNewJobs(t *testing.T) {
	env := newScrapeEnv(t)
	m := env.manager(&services.MockScraper{}, 1)
	m.Close()

	_, err := m.Start(env.ctx, StartRequest{})
	assert.ErrorIs(t, err, ErrManagerClosed)
}
