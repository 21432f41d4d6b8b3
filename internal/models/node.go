package models

// AddressRequest is the body of the onboard and check-in calls.
type AddressRequest struct {
	Address string `json:"address"`
}

type OnboardResponse struct {
	Message *string `json:"message,omitempty"`
}

type CheckInResult struct {
	Points  *float64 `json:"points,omitempty"`
	Message *string  `json:"message,omitempty"`
}

// NodeStats is a transient snapshot of server-side node state. Every field
// is optional; nil means unknown, not zero. Never persisted.
type NodeStats struct {
	HasNode          *bool    `json:"has_node,omitempty"`
	NodeAddress      *string  `json:"node_address,omitempty"`
	Points           *float64 `json:"points,omitempty"`
	PendingRewards   *float64 `json:"pending_rewards,omitempty"`
	TotalDistributed *float64 `json:"total_distributed,omitempty"`
	LastCheckinTime  *int64   `json:"last_checkin_time,omitempty"`
	// Milliseconds since epoch; drives the countdown schedule.
	NextCheckinTimestamp *int64 `json:"next_checkin_timestamp,omitempty"`
	CardCount            *int   `json:"card_count,omitempty"`
}
