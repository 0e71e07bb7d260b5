package notify

import (
	"time"

	"github.com/garagedesk/internal/logger"
	"github.com/garagedesk/internal/model"
)

type ToastStyle string

const (
	ToastSuccess ToastStyle = "success"
	ToastError   ToastStyle = "error"
	ToastWarning ToastStyle = "warning"
	ToastInfo    ToastStyle = "info"
	ToastAlert   ToastStyle = "alert"
	ToastNeutral ToastStyle = "neutral"
)

const (
	defaultToastDuration = 5 * time.Second
	urgentToastDuration  = 8 * time.Second
)

// Toast is the ephemeral presentation of a freshly added notification.
// Purely cosmetic: showing (or failing to show) a toast never touches the
// canonical list.
type Toast struct {
	Style    ToastStyle
	Icon     string
	Title    string
	Message  string
	Duration time.Duration
}

// Toaster renders toasts. UI front-ends plug in their own; the default
// implementation just logs.
type Toaster interface {
	Show(t Toast)
}

func toastFor(n model.Notification) Toast {
	t := Toast{Title: n.Title, Message: n.Message, Duration: defaultToastDuration}
	switch n.Type {
	case model.NotificationSuccess:
		t.Style = ToastSuccess
	case model.NotificationError:
		t.Style = ToastError
	case model.NotificationWarning:
		t.Style = ToastWarning
		t.Icon = "warning"
	case model.NotificationApproval:
		t.Style = ToastInfo
		t.Icon = "document"
	case model.NotificationUrgent:
		t.Style = ToastAlert
		t.Duration = urgentToastDuration
	default:
		t.Style = ToastNeutral
	}
	return t
}

// LogToaster writes toasts to the log. Useful for headless terminals and
// as the fallback when no UI toaster is wired in.
type LogToaster struct{}

func (LogToaster) Show(t Toast) {
	logger.Infof("toast style=%s title=%q message=%q duration=%s", t.Style, t.Title, t.Message, t.Duration)
}
