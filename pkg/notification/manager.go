package notification

import (
	"fmt"
)

// NotificationManager routes notices to a notifier with their registered
// templates.
type NotificationManager struct {
	notifier Notifier
	registry map[NoticeType]NoticeTemplate
}

// NewNotificationManager creates a manager delivering through notifier.
func NewNotificationManager(notifier Notifier) *NotificationManager {
	return &NotificationManager{
		notifier: notifier,
		registry: make(map[NoticeType]NoticeTemplate),
	}
}

// RegisterNotification adds or replaces the template for a notice type.
func (nm *NotificationManager) RegisterNotification(noticeType NoticeType, template NoticeTemplate) error {
	if noticeType == "" || template.Subject == "" {
		return fmt.Errorf("invalid input: notice type and subject cannot be empty")
	}
	nm.registry[noticeType] = template
	return nil
}

// Send renders and delivers one notice.
func (nm *NotificationManager) Send(noticeType NoticeType, notification NotificationData) error {
	template, exists := nm.registry[noticeType]
	if !exists {
		return fmt.Errorf("no template registered for notice type: %s", noticeType)
	}
	return nm.notifier.Send(noticeType, notification, template)
}
