package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/amirphl/outreach-orchestrator/repository"
	"github.com/amirphl/outreach-orchestrator/utils"
)

// SendWindow is a time-of-day range in minutes since midnight, half-open [Start, End).
// Start > End wraps past midnight; Start == End is open all day.
type SendWindow struct {
	Start int
	End   int
}

// ParseSendWindow parses "HH:MM" bounds
func ParseSendWindow(start, end string) (SendWindow, error) {
	s, err := utils.ParseClock(start)
	if err != nil {
		return SendWindow{}, err
	}
	e, err := utils.ParseClock(end)
	if err != nil {
		return SendWindow{}, err
	}
	return SendWindow{Start: s, End: e}, nil
}

// Contains reports whether the wall clock of t falls inside the window
func (w SendWindow) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	switch {
	case w.Start == w.End:
		return true
	case w.Start < w.End:
		return m >= w.Start && m < w.End
	default:
		return m >= w.Start || m < w.End
	}
}

// RateGuard enforces send windows and daily caps before dispatch
type RateGuard struct {
	counters repository.DailySendCounterRepository
}

func NewRateGuard(counters repository.DailySendCounterRepository) *RateGuard {
	return &RateGuard{counters: counters}
}

// WindowFor resolves the effective window: step override, campaign window, then the default
func WindowFor(c *models.Campaign, step *models.SequenceStep) (SendWindow, error) {
	if step != nil && step.HasWindowOverride() {
		return ParseSendWindow(*step.WindowStart, *step.WindowEnd)
	}
	start, end := utils.DefaultWindowStart, utils.DefaultWindowEnd
	if c.WindowStart != "" && c.WindowEnd != "" {
		start, end = c.WindowStart, c.WindowEnd
	}
	return ParseSendWindow(start, end)
}

// WithinWindow reports whether now, in the campaign timezone, is inside the step's send window
func (g *RateGuard) WithinWindow(c *models.Campaign, step *models.SequenceStep, now time.Time) (bool, error) {
	w, err := WindowFor(c, step)
	if err != nil {
		return false, fmt.Errorf("campaign %d: %w", c.ID, err)
	}
	return w.Contains(now.In(c.Location())), nil
}

// Day returns the counter day for now in the campaign timezone
func (g *RateGuard) Day(c *models.Campaign, now time.Time) string {
	return utils.LocalDay(now, c.Location())
}

// Reserve takes one slot of the campaign's daily cap. It returns false, without
// error, when the cap is reached. Call it inside the dispatch transaction.
func (g *RateGuard) Reserve(ctx context.Context, c *models.Campaign, day string) (bool, error) {
	return g.counters.Reserve(ctx, c.ID, day, c.DailyCap)
}

// Release returns a slot reserved for a dispatch the provider never accepted
func (g *RateGuard) Release(ctx context.Context, campaignID uint, day string) error {
	return g.counters.Release(ctx, campaignID, day)
}

// Used returns how many dispatches the campaign made on today's local day
func (g *RateGuard) Used(ctx context.Context, c *models.Campaign, now time.Time) (int, error) {
	return g.counters.Get(ctx, c.ID, g.Day(c, now))
}

// Remaining reports how many dispatches are left for the day; -1 means unlimited
func (g *RateGuard) Remaining(ctx context.Context, c *models.Campaign, now time.Time) (int, error) {
	if c.DailyCap <= 0 {
		return -1, nil
	}
	n, err := g.Used(ctx, c, now)
	if err != nil {
		return 0, err
	}
	if n >= c.DailyCap {
		return 0, nil
	}
	return c.DailyCap - n, nil
}
