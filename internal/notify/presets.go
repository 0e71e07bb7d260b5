package notify

import "github.com/garagedesk/internal/model"

// ApprovalUrgentCostThreshold is the estimate amount above which an
// approval request escalates from high to urgent priority.
const ApprovalUrgentCostThreshold = 1000.0

// NotifyApprovalRequest raises an approval-request notification, e.g. when
// a repair estimate needs the customer's sign-off. Costly approvals
// escalate to urgent.
func (h *Hub) NotifyApprovalRequest(title, message, actionURL string, cost float64) model.Notification {
	priority := model.PriorityHigh
	if cost > ApprovalUrgentCostThreshold {
		priority = model.PriorityUrgent
	}
	return h.AddNotification(model.NotificationInput{
		Type:      model.NotificationApproval,
		Title:     title,
		Message:   message,
		ActionURL: actionURL,
		Priority:  priority,
		Category:  model.CategoryApproval,
	})
}

// NotifyFollowUpAssigned raises a follow-up-task notification.
func (h *Hub) NotifyFollowUpAssigned(title, message, actionURL string) model.Notification {
	return h.AddNotification(model.NotificationInput{
		Type:      model.NotificationInfo,
		Title:     title,
		Message:   message,
		ActionURL: actionURL,
		Priority:  model.PriorityMedium,
		Category:  model.CategoryFollowUp,
	})
}

// NotifyUrgentReminder raises an urgent reminder (overdue appointment,
// vehicle ready for pickup past closing, and the like).
func (h *Hub) NotifyUrgentReminder(title, message, actionURL string) model.Notification {
	return h.AddNotification(model.NotificationInput{
		Type:      model.NotificationUrgent,
		Title:     title,
		Message:   message,
		ActionURL: actionURL,
		Priority:  model.PriorityUrgent,
		Category:  model.CategoryReminder,
	})
}
