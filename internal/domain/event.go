package domain

import "time"

// EventType enumerates ledger events published on the event bus and
// mirrored to WebSocket clients and notification channels.
type EventType string

const (
	EventGroupCreated    EventType = "group_created"
	EventContribution    EventType = "contribution_received"
	EventPayoutDisbursed EventType = "payout_disbursed"
	EventMemberDefault   EventType = "member_default"
	EventInsuranceClaim  EventType = "insurance_claim"
	EventGroupClosed     EventType = "group_closed"
)

// GroupEvent is the payload published after a committed ledger mutation.
type GroupEvent struct {
	Type    EventType `json:"type"`
	GroupID string    `json:"group_id"`
	Member  string    `json:"member,omitempty"`
	Cycle   int       `json:"cycle"`
	Amount  int64     `json:"amount,omitempty"`
	At      time.Time `json:"at"`
}

// Channel returns the event bus channel this event is published on.
func (e GroupEvent) Channel() string {
	return "groups:" + string(e.Type)
}
