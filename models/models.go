// Package models contains the persisted domain entities of the outreach orchestrator
package models

// All returns every model managed by the migrate command, in dependency order
func All() []any {
	return []any{
		&Campaign{},
		&SequenceStep{},
		&Lead{},
		&CampaignLead{},
		&ApprovalItem{},
		&DailySendCounter{},
		&ScrapeJob{},
		&DispatchEvent{},
	}
}
