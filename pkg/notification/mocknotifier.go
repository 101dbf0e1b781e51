package notification

import (
	"sync"
)

// NoopNotifier drops every delivery. Useful when a deployment has no SMTP
// relay configured.
type NoopNotifier struct{}

func (NoopNotifier) Send(NoticeType, NotificationData, NoticeTemplate) error {
	return nil
}

// MockNotifier records deliveries instead of sending them, for tests and
// local development.
type MockNotifier struct {
	mu   sync.Mutex
	sent []SentNotice
}

// SentNotice is one recorded delivery.
type SentNotice struct {
	Type         NoticeType
	Notification NotificationData
	Template     NoticeTemplate
}

// NewMockNotifier creates an empty recording notifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Send(noticeType NoticeType, notification NotificationData, noticeTemplate NoticeTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, SentNotice{
		Type:         noticeType,
		Notification: notification,
		Template:     noticeTemplate,
	})
	return nil
}

// Sent returns a copy of the recorded deliveries.
func (m *MockNotifier) Sent() []SentNotice {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SentNotice, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentOfType returns the recorded deliveries of one notice type.
func (m *MockNotifier) SentOfType(noticeType NoticeType) []SentNotice {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []SentNotice
	for _, s := range m.sent {
		if s.Type == noticeType {
			out = append(out, s)
		}
	}
	return out
}
