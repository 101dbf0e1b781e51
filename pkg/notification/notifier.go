package notification

// NoticeType identifies one account event that triggers a delivery.
type NoticeType string

const (
	NoticeAskLogin         NoticeType = "ask_login"
	NoticeLogin            NoticeType = "login"
	NoticeLogout           NoticeType = "logout"
	NoticeAskResetPassword NoticeType = "ask_reset_password"
	NoticeAskChangeEmail   NoticeType = "ask_change_email"
	NoticeEmailChanged     NoticeType = "email_changed"
	NoticePasswordChanged  NoticeType = "password_changed"
	NoticeTwoFaDisabled    NoticeType = "twofa_disabled"
	NoticeAccountBlocked   NoticeType = "account_blocked"
	NoticeValidateEmail    NoticeType = "validate_email"
)

// NoticeTemplate holds the subject and text body template for one notice.
// Bodies are text/template strings rendered with NotificationData.Data.
type NoticeTemplate struct {
	Subject string
	Text    string
}

// NotificationData is the payload for one delivery.
type NotificationData struct {
	To     string            // Recipient address
	ToName string            // Recipient display name
	Data   map[string]string // Template variables (pin, url, token, ...)
}

// Notifier delivers a rendered notice over one channel.
type Notifier interface {
	Send(noticeType NoticeType, notification NotificationData, noticeTemplate NoticeTemplate) error
}
