package testing

import (
	"fmt"
	"time"

	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/amirphl/outreach-orchestrator/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateCampaign creates an active campaign with an always-open send window
func (tf *TestFixtures) CreateCampaign(dailyCap int) (*models.Campaign, error) {
	c := &models.Campaign{
		Name:        fmt.Sprintf("campaign-%d", time.Now().UnixNano()),
		Status:      models.CampaignStatusActive,
		DailyCap:    dailyCap,
		WindowStart: "00:00",
		WindowEnd:   "23:59",
		Timezone:    "UTC",
		LaunchedAt:  utils.UTCNowPtr(),
	}
	if err := tf.DB.DB.Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// CreateStep appends a step to the campaign sequence
func (tf *TestFixtures) CreateStep(campaignID uint, position int, stepType models.StepType, delayDays int) (*models.SequenceStep, error) {
	s := &models.SequenceStep{
		CampaignID: campaignID,
		Position:   position,
		Type:       stepType,
		DelayDays:  delayDays,
		Template:   utils.ToPtr("Hi {{first_name}}, great to connect about {{company}}."),
	}
	if stepType == models.StepTypeEmail {
		s.Subject = utils.ToPtr("Quick question")
	}
	if err := tf.DB.DB.Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// CreateLead creates a lead with a LinkedIn profile and optional email
func (tf *TestFixtures) CreateLead(n int, email *string) (*models.Lead, error) {
	l := &models.Lead{
		FirstName:   fmt.Sprintf("Ada%d", n),
		LastName:    "Lovelace",
		Company:     "Analytical Engines",
		Title:       "Engineer",
		LinkedInURL: fmt.Sprintf("https://www.linkedin.com/in/lead-%d", n),
		Email:       email,
	}
	if err := tf.DB.DB.Create(l).Error; err != nil {
		return nil, err
	}
	return l, nil
}

// EnrollLead creates a cursor for the lead in the given state
func (tf *TestFixtures) EnrollLead(campaignID, leadID uint, status models.CursorStatus) (*models.CampaignLead, error) {
	cl := &models.CampaignLead{
		CampaignID:   campaignID,
		LeadID:       leadID,
		CursorStatus: status,
	}
	if err := tf.DB.DB.Create(cl).Error; err != nil {
		return nil, err
	}
	return cl, nil
}

// CreateApprovalItem creates an item for the cursor and step, moving the cursor to awaiting_approval on that step
func (tf *TestFixtures) CreateApprovalItem(cl *models.CampaignLead, step *models.SequenceStep, status models.ApprovalStatus) (*models.ApprovalItem, error) {
	item := &models.ApprovalItem{
		CampaignID:     cl.CampaignID,
		CampaignLeadID: cl.ID,
		StepID:         step.ID,
		StepPosition:   step.Position,
		Channel:        step.Type.Channel(),
		Content:        "Hello there",
		Subject:        step.Subject,
		Status:         status,
	}
	if status == models.ApprovalStatusApproved {
		item.ReviewedAt = utils.UTCNowPtr()
	}
	if err := tf.DB.DB.Create(item).Error; err != nil {
		return nil, err
	}
	if err := tf.DB.DB.Model(&models.CampaignLead{}).Where("id = ?", cl.ID).Updates(map[string]any{
		"cursor_status":      models.CursorStatusAwaitingApproval,
		"current_step_index": step.Position,
	}).Error; err != nil {
		return nil, err
	}
	cl.CursorStatus = models.CursorStatusAwaitingApproval
	cl.CurrentStepIndex = step.Position
	return item, nil
}

// ApprovedPipeline creates n leads each with one approved item on a single-step campaign
func (tf *TestFixtures) ApprovedPipeline(dailyCap, n int, stepType models.StepType) (*models.Campaign, []*models.ApprovalItem, error) {
	c, err := tf.CreateCampaign(dailyCap)
	if err != nil {
		return nil, nil, err
	}
	step, err := tf.CreateStep(c.ID, 1, stepType, 0)
	if err != nil {
		return nil, nil, err
	}
	items := make([]*models.ApprovalItem, 0, n)
	for i := 0; i < n; i++ {
		lead, err := tf.CreateLead(i, utils.ToPtr(fmt.Sprintf("lead%d@example.com", i)))
		if err != nil {
			return nil, nil, err
		}
		cl, err := tf.EnrollLead(c.ID, lead.ID, models.CursorStatusIdle)
		if err != nil {
			return nil, nil, err
		}
		item, err := tf.CreateApprovalItem(cl, step, models.ApprovalStatusApproved)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, item)
	}
	return c, items, nil
}
