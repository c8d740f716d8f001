package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amirphl/outreach-orchestrator/app/dto"
	"github.com/amirphl/outreach-orchestrator/app/jobs"
	"github.com/amirphl/outreach-orchestrator/app/scheduler"
	"github.com/amirphl/outreach-orchestrator/app/services"
	businessflow "github.com/amirphl/outreach-orchestrator/business_flow"
	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/amirphl/outreach-orchestrator/repository"
	testingutil "github.com/amirphl/outreach-orchestrator/testing"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiEnv struct {
	t   *testing.T
	app *fiber.App
	db  *testingutil.TestDB
	fx  *testingutil.TestFixtures
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	db := testingutil.NewTestDB(t)
	repos := scheduler.NewRepositories(db.DB)
	leads := repository.NewLeadRepository(db.DB)
	logger := utils.DiscardLogger()
	composer := services.NewContentComposer(nil, logger)

	manager := jobs.NewScrapeManager(repository.NewScrapeJobRepository(db.DB), leads, &services.MockScraper{}, 1, logger)
	t.Cleanup(manager.Close)

	campaign := NewCampaignHandler(businessflow.NewCampaignFlow(
		repos.Campaigns, repos.Steps, leads, repos.CampaignLeads, scheduler.NewRateGuard(repos.Counters), db.DB, logger,
	), logger)
	sequence := NewSequenceHandler(businessflow.NewSequenceFlow(repos.Campaigns, repos.Steps, db.DB, logger), logger)
	lead := NewLeadHandler(businessflow.NewLeadFlow(repos.CampaignLeads, repos.Steps, repos.Items, logger), logger)
	approval := NewApprovalHandler(businessflow.NewApprovalFlow(repos.Items, repos.CampaignLeads, repos.Steps, composer, logger), logger)
	scrape := NewScrapeJobHandler(businessflow.NewScrapeFlow(manager, logger), logger)
	activity := NewActivityHandler(businessflow.NewActivityFlow(repos.Events), logger)

	app := fiber.New()
	api := app.Group("/api/v1")
	api.Post("/campaigns", campaign.CreateCampaign)
	api.Get("/campaigns/:id", campaign.GetCampaign)
	api.Post("/campaigns/:id/launch", campaign.LaunchCampaign)
	api.Post("/campaigns/:id/leads", campaign.AddLeads)
	api.Get("/campaigns/:id/steps", sequence.ListSteps)
	api.Post("/campaigns/:id/steps", sequence.AddStep)
	api.Delete("/campaigns/:id/steps/:stepId", sequence.RemoveStep)
	api.Post("/campaign-leads/:id/retry", lead.RetryLead)
	api.Post("/campaign-leads/:id/pause", lead.PauseLead)
	api.Get("/approvals", approval.ListApprovals)
	api.Post("/approvals/bulk-approve", approval.BulkApprove)
	api.Get("/approvals/:id", approval.GetApprovalStatus)
	api.Put("/approvals/:id/content", approval.EditContent)
	api.Post("/approvals/:id/regenerate", approval.Regenerate)
	api.Post("/approvals/:id/approve", approval.Approve)
	api.Post("/scrape-jobs", scrape.StartOrCancel)
	api.Get("/scrape-jobs/:id", scrape.Poll)
	api.Get("/activity", activity.ListActivity)

	return &apiEnv{t: t, app: app, db: db, fx: testingutil.NewTestFixtures(db)}
}

type apiResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Details any    `json:"details"`
	} `json:"error"`
}

func (e *apiEnv) do(method, path string, body any) (int, apiResult) {
	e.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.app.Test(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	var out apiResult
	require.NoError(e.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func decodeData[T any](t *testing.T, r apiResult) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(r.Data, &v))
	return v
}

func TestCampaignEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	status, res := env.do(http.MethodPost, "/api/v1/campaigns", map[string]any{
		"name":      "Q3 founders",
		"daily_cap": 10,
	})
	require.Equal(t, http.StatusCreated, status, res.Message)
	created := decodeData[dto.CampaignResponse](t, res)
	assert.Equal(t, "draft", created.Status)

	status, res = env.do(http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%d/launch", created.ID), nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.False(t, res.Success)

	status, res = env.do(http.MethodGet, "/api/v1/campaigns/999", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, res.Success)

	status, _ = env.do(http.MethodGet, "/api/v1/campaigns/abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, res = env.do(http.MethodPost, "/api/v1/campaigns", map[string]any{"daily_cap": 5})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", res.Error.Code)

	status, res = env.do(http.MethodPost, "/api/v1/campaigns", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_REQUEST", res.Error.Code)

	status, res = env.do(http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%d/leads", created.ID), map[string]any{
		"leads": []map[string]any{{"first_name": "Ada", "company": "Acme", "email": "ada@acme.com"}},
	})
	require.Equal(t, http.StatusCreated, status, res.Message)
	added := decodeData[dto.AddLeadsResponse](t, res)
	assert.Equal(t, 1, added.Added)
}

func TestSequenceEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	c, err := env.fx.CreateCampaign(0)
	require.NoError(t, err)
	base := fmt.Sprintf("/api/v1/campaigns/%d/steps", c.ID)

	status, res := env.do(http.MethodPost, base, map[string]any{"type": "message", "delay_days": 2})
	require.Equal(t, http.StatusCreated, status, res.Message)
	step := decodeData[dto.StepResponse](t, res)
	assert.Equal(t, 1, step.Position)
	assert.Equal(t, 2, step.DelayDays)

	status, _ = env.do(http.MethodPost, base, `{"type":"message","delay_days":1.5}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(http.MethodPost, base, map[string]any{"type": "message", "delay_days": -1})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(http.MethodPost, base, map[string]any{"type": "fax"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, res = env.do(http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, status)
	list := decodeData[dto.ListStepsResponse](t, res)
	assert.Len(t, list.Steps, 1)

	status, _ = env.do(http.MethodDelete, fmt.Sprintf("%s/%d", base, step.ID), nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.do(http.MethodDelete, fmt.Sprintf("%s/%d", base, step.ID), nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestApprovalEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	c, err := env.fx.CreateCampaign(0)
	require.NoError(t, err)
	step, err := env.fx.CreateStep(c.ID, 1, models.StepTypeMessage, 0)
	require.NoError(t, err)
	lead, err := env.fx.CreateLead(1, nil)
	require.NoError(t, err)
	cl, err := env.fx.EnrollLead(c.ID, lead.ID, models.CursorStatusIdle)
	require.NoError(t, err)
	item, err := env.fx.CreateApprovalItem(cl, step, models.ApprovalStatusPending)
	require.NoError(t, err)
	itemPath := fmt.Sprintf("/api/v1/approvals/%d", item.ID)

	t.Run("regenerate falls back to the template", func(t *testing.T) {
		status, res := env.do(http.MethodPost, itemPath+"/regenerate", map[string]any{"tone": "friendly"})
		require.Equal(t, http.StatusOK, status, res.Message)
		out := decodeData[dto.RegenerateResponse](t, res)
		assert.True(t, out.AIUnavailable)
		assert.Contains(t, out.Item.Content, "Ada1")
		assert.Equal(t, "pending", out.Item.Status)
	})

	t.Run("invalid tone is rejected", func(t *testing.T) {
		status, _ := env.do(http.MethodPost, itemPath+"/regenerate", map[string]any{"tone": "sarcastic"})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("edit content", func(t *testing.T) {
		status, res := env.do(http.MethodPut, itemPath+"/content", map[string]any{"content": "Hello there"})
		require.Equal(t, http.StatusOK, status, res.Message)
		out := decodeData[dto.ApprovalItemResponse](t, res)
		assert.Equal(t, "Hello there", out.Content)

		status, _ = env.do(http.MethodPut, itemPath+"/content", map[string]any{"content": ""})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("list filters by status", func(t *testing.T) {
		status, res := env.do(http.MethodGet, "/api/v1/approvals?status=pending", nil)
		require.Equal(t, http.StatusOK, status, res.Message)
		out := decodeData[dto.ListApprovalsResponse](t, res)
		require.Len(t, out.Items, 1)
		assert.Equal(t, item.ID, out.Items[0].ID)

		status, _ = env.do(http.MethodGet, "/api/v1/approvals?status=archived", nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("approve once", func(t *testing.T) {
		status, res := env.do(http.MethodPost, itemPath+"/approve", nil)
		require.Equal(t, http.StatusOK, status, res.Message)
		assert.Equal(t, "approved", decodeData[dto.ApprovalItemResponse](t, res).Status)

		status, res = env.do(http.MethodPost, itemPath+"/approve", nil)
		assert.Equal(t, http.StatusConflict, status)
		assert.False(t, res.Success)

		status, res = env.do(http.MethodGet, itemPath, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "approved", decodeData[dto.ApprovalStatusResponse](t, res).Status)
	})

	t.Run("bulk approve reports skipped ids", func(t *testing.T) {
		status, res := env.do(http.MethodPost, "/api/v1/approvals/bulk-approve", map[string]any{"ids": []uint{item.ID, 9999}})
		require.Equal(t, http.StatusOK, status, res.Message)
		out := decodeData[dto.BulkActionResponse](t, res)
		assert.Equal(t, 0, out.Succeeded)
		assert.ElementsMatch(t, []uint{item.ID, 9999}, out.SkippedIDs)

		status, _ = env.do(http.MethodPost, "/api/v1/approvals/bulk-approve", map[string]any{"ids": []uint{}})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("unknown item", func(t *testing.T) {
		status, _ := env.do(http.MethodGet, "/api/v1/approvals/9999", nil)
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestLeadEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	c, err := env.fx.CreateCampaign(0)
	require.NoError(t, err)
	lead, err := env.fx.CreateLead(1, nil)
	require.NoError(t, err)
	cl, err := env.fx.EnrollLead(c.ID, lead.ID, models.CursorStatusIdle)
	require.NoError(t, err)

	status, _ := env.do(http.MethodPost, fmt.Sprintf("/api/v1/campaign-leads/%d/retry", cl.ID), nil)
	assert.Equal(t, http.StatusConflict, status)

	status, res := env.do(http.MethodPost, fmt.Sprintf("/api/v1/campaign-leads/%d/pause", cl.ID), nil)
	require.Equal(t, http.StatusOK, status, res.Message)
	assert.Equal(t, "paused", decodeData[dto.LeadActionResponse](t, res).Lead.CursorStatus)

	status, _ = env.do(http.MethodPost, "/api/v1/campaign-leads/9999/pause", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestScrapeAndActivityEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	status, _ := env.do(http.MethodGet, "/api/v1/scrape-jobs/not-a-job", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(http.MethodPost, "/api/v1/scrape-jobs", map[string]any{"cancel": true})
	assert.Equal(t, http.StatusBadRequest, status)

	status, res := env.do(http.MethodPost, "/api/v1/scrape-jobs", map[string]any{"missing_only": true})
	require.Equal(t, http.StatusAccepted, status, res.Message)
	job := decodeData[dto.ScrapeJobResponse](t, res)
	assert.NotEmpty(t, job.JobID)

	status, _ = env.do(http.MethodGet, "/api/v1/scrape-jobs/"+job.JobID, nil)
	assert.Equal(t, http.StatusOK, status)

	status, res = env.do(http.MethodGet, "/api/v1/activity", nil)
	require.Equal(t, http.StatusOK, status, res.Message)
	feed := decodeData[dto.ListActivityResponse](t, res)
	assert.Empty(t, feed.Items)

	status, _ = env.do(http.MethodGet, "/api/v1/activity?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}
