package model

import "time"

type NotificationType string

const (
	NotificationInfo     NotificationType = "info"
	NotificationSuccess  NotificationType = "success"
	NotificationWarning  NotificationType = "warning"
	NotificationError    NotificationType = "error"
	NotificationApproval NotificationType = "approval"
	NotificationUrgent   NotificationType = "urgent"
)

type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

type NotificationCategory string

const (
	CategoryApproval NotificationCategory = "approval"
	CategoryFollowUp NotificationCategory = "followup"
	CategorySystem   NotificationCategory = "system"
	CategoryReminder NotificationCategory = "reminder"
)

// Notification is one entry in a session's notification list.
// ID, Timestamp and Read are assigned by the hub at creation; everything
// else comes from the caller (or a server push).
type Notification struct {
	ID        string               `json:"id"`
	Type      NotificationType     `json:"type"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Timestamp time.Time            `json:"timestamp"`
	Read      bool                 `json:"read"`
	ActionURL string               `json:"action_url,omitempty"`
	Priority  NotificationPriority `json:"priority"`
	Category  NotificationCategory `json:"category"`
}

// NotificationInput is the caller-supplied part of a Notification: the same
// shape arrives in server-pushed notification events.
type NotificationInput struct {
	Type      NotificationType     `json:"type"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	ActionURL string               `json:"action_url,omitempty"`
	Priority  NotificationPriority `json:"priority"`
	Category  NotificationCategory `json:"category"`
}
