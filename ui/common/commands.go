package common

type SessionState uint

const (
	AdminPanelView  SessionState = iota // Local account management (admin only)
	FollowersView                       // Community follower counts
	QueueView                           // Delivery queue depth + recent inbound activity
)

// ActivateViewMsg is sent when a view becomes active (visible)
type ActivateViewMsg struct{}

// DeactivateViewMsg is sent when a view becomes inactive (hidden)
type DeactivateViewMsg struct{}
