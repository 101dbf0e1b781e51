package notification

import (
	"fmt"

	"github.com/tendant/simple-account/pkg/user"
)

// AccountNotifier translates account events into notices and delivers them
// through the manager. Callers schedule these after commit and never treat a
// delivery failure as a request failure.
type AccountNotifier struct {
	manager *NotificationManager
	baseURL string
}

// NewAccountNotifier creates an account notifier. baseURL prefixes the
// deep links embedded in notice bodies.
func NewAccountNotifier(manager *NotificationManager, baseURL string) *AccountNotifier {
	return &AccountNotifier{
		manager: manager,
		baseURL: baseURL,
	}
}

func (n *AccountNotifier) send(noticeType NoticeType, u user.View, data map[string]string) error {
	if data == nil {
		data = map[string]string{}
	}
	data["name"] = u.FirstName

	return n.manager.Send(noticeType, NotificationData{
		To:     u.Email,
		ToName: u.FullName,
		Data:   data,
	})
}

// AskLogin delivers the email login pin.
func (n *AccountNotifier) AskLogin(u user.View, pin string) error {
	return n.send(NoticeAskLogin, u, map[string]string{
		"pin": pin,
		"url": fmt.Sprintf("%s/ask-login?email=%s", n.baseURL, u.Email),
	})
}

// Login notifies about a successful login.
func (n *AccountNotifier) Login(u user.View) error {
	return n.send(NoticeLogin, u, nil)
}

// Logout notifies about a session end.
func (n *AccountNotifier) Logout(u user.View) error {
	return n.send(NoticeLogout, u, nil)
}

// AskResetPassword delivers the reset-password link.
func (n *AccountNotifier) AskResetPassword(u user.View, tokenValue string) error {
	return n.send(NoticeAskResetPassword, u, map[string]string{
		"token": tokenValue,
		"url":   fmt.Sprintf("%s/reset-password/%s", n.baseURL, tokenValue),
	})
}

// AskChangeEmail delivers the change-email confirmation link to the new
// address.
func (n *AccountNotifier) AskChangeEmail(u user.View, newEmail, tokenValue string) error {
	return n.manager.Send(NoticeAskChangeEmail, NotificationData{
		To:     newEmail,
		ToName: u.FullName,
		Data: map[string]string{
			"name":     u.FirstName,
			"newEmail": newEmail,
			"token":    tokenValue,
			"url":      fmt.Sprintf("%s/change-email/%s", n.baseURL, tokenValue),
		},
	})
}

// EmailChanged confirms an applied email change.
func (n *AccountNotifier) EmailChanged(u user.View) error {
	return n.send(NoticeEmailChanged, u, nil)
}

// PasswordChanged confirms a password change.
func (n *AccountNotifier) PasswordChanged(u user.View) error {
	return n.send(NoticePasswordChanged, u, nil)
}

// TwoFaDisabled confirms two-factor authentication was turned off.
func (n *AccountNotifier) TwoFaDisabled(u user.View) error {
	return n.send(NoticeTwoFaDisabled, u, nil)
}

// AccountBlocked warns that the account was deactivated after repeated
// failed logins.
func (n *AccountNotifier) AccountBlocked(u user.View) error {
	return n.send(NoticeAccountBlocked, u, nil)
}

// ValidateEmail welcomes a user whose email was just verified.
func (n *AccountNotifier) ValidateEmail(u user.View) error {
	return n.send(NoticeValidateEmail, u, nil)
}
