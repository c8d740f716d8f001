package businessflow

import (
	"testing"

	"github.com/amirphl/outreach-orchestrator/app/dto"
	"github.com/amirphl/outreach-orchestrator/app/jobs"
	"github.com/amirphl/outreach-orchestrator/app/services"
	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/amirphl/outreach-orchestrator/repository"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrapeFlow(t *testing.T) {
	env := newFlowEnv(t)
	manager := jobs.NewScrapeManager(
		repository.NewScrapeJobRepository(env.db.DB),
		env.leads,
		&services.MockScraper{},
		1,
		utils.DiscardLogger(),
	)
	t.Cleanup(manager.Close)
	flow := NewScrapeFlow(manager, utils.DiscardLogger())

	for i := 0; i < 3; i++ {
		_, err := env.fx.CreateLead(i, nil)
		require.NoError(t, err)
	}

	started, err := flow.StartOrCancel(env.ctx, &dto.ScrapeJobRequest{MissingOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 3, started.Total)
	assert.Equal(t, string(models.ScrapeJobStatusRunning), started.Status)

	manager.Wait()

	polled, err := flow.Poll(env.ctx, started.JobID)
	require.NoError(t, err)
	assert.Equal(t, string(models.ScrapeJobStatusCompleted), polled.Status)
	assert.Equal(t, 3, polled.Processed)
	assert.Equal(t, 3, polled.Found)
	assert.InDelta(t, 1.0, polled.Progress, 1e-9)
	assert.NotNil(t, polled.FinishedAt)

	_, err = flow.StartOrCancel(env.ctx, &dto.ScrapeJobRequest{Cancel: true, JobID: started.JobID})
	require.ErrorIs(t, err, ErrScrapeJobNotRunning)
	assert.True(t, IsConflict(err))

	_, err = flow.StartOrCancel(env.ctx, &dto.ScrapeJobRequest{Cancel: true})
	require.ErrorIs(t, err, ErrScrapeJobIDRequired)

	_, err = flow.Poll(env.ctx, uuid.NewString())
	require.ErrorIs(t, err, ErrScrapeJobNotFound)

	_, err = flow.Poll(env.ctx, "not-a-uuid")
	require.ErrorIs(t, err, ErrScrapeJobNotFound)
}
