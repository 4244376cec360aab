package domain

import "time"

// Contribution is one member's payment for one cycle. Amount is the gross
// payment, Skim the insurance cut, Net what reached the group vault.
// Amount == Net + Skim always holds.
type Contribution struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	Member    string    `json:"member"`
	Cycle     int       `json:"cycle"`
	Amount    int64     `json:"amount"`
	Skim      int64     `json:"skim"`
	Net       int64     `json:"net"`
	CreatedAt time.Time `json:"created_at"`
}

// MemberDebt records the uncovered part of a default shortfall. Recipient
// is the member who was shorted when the cycle disbursed. Outstanding
// decreases as insurance claims pay it down; it never goes negative.
type MemberDebt struct {
	ID          string    `json:"id"`
	GroupID     string    `json:"group_id"`
	Member      string    `json:"member"`
	Cycle       int       `json:"cycle"`
	Recipient   string    `json:"recipient"`
	Shortfall   int64     `json:"shortfall"`
	Covered     int64     `json:"covered"`
	Outstanding int64     `json:"outstanding"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
