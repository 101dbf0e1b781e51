package notification

// defaultTemplates are the built-in text templates for account notices.
var defaultTemplates = map[NoticeType]NoticeTemplate{
	NoticeAskLogin: {
		Subject: "Your login code",
		Text:    "Hi {{.name}},\n\nYour login code is {{.pin}}. It expires in a few minutes.\n\n{{.url}}\n",
	},
	NoticeLogin: {
		Subject: "New login to your account",
		Text:    "Hi {{.name}},\n\nWe noticed a new login to your account. If this was you, no action is needed.\n",
	},
	NoticeLogout: {
		Subject: "Logged out",
		Text:    "Hi {{.name}},\n\nYou have been logged out. We hope to see you back soon.\n",
	},
	NoticeAskResetPassword: {
		Subject: "Reset your password",
		Text:    "Hi {{.name}},\n\nUse the link below to reset your password:\n\n{{.url}}\n\nIf you did not request this, you can ignore this email.\n",
	},
	NoticeAskChangeEmail: {
		Subject: "Confirm your new email address",
		Text:    "Hi {{.name}},\n\nUse the link below to confirm your new email address ({{.newEmail}}):\n\n{{.url}}\n\nIf you did not request this, you can ignore this email.\n",
	},
	NoticeEmailChanged: {
		Subject: "Your email address was changed",
		Text:    "Hi {{.name}},\n\nThe email address on your account was changed. All sessions have been signed out.\n",
	},
	NoticePasswordChanged: {
		Subject: "Your password was changed",
		Text:    "Hi {{.name}},\n\nYour password was changed. All sessions have been signed out.\n",
	},
	NoticeTwoFaDisabled: {
		Subject: "Two-factor authentication disabled",
		Text:    "Hi {{.name}},\n\nTwo-factor authentication was disabled on your account.\n",
	},
	NoticeAccountBlocked: {
		Subject: "Your account has been blocked",
		Text:    "Hi {{.name}},\n\nYour account was deactivated after too many failed login attempts. Contact support to restore access.\n",
	},
	NoticeValidateEmail: {
		Subject: "Welcome on board",
		Text:    "Hi {{.name}},\n\nYour email address is verified. Welcome on board, we are happy you are here.\n",
	},
}

// RegisterDefaultNotifications installs the built-in templates on a manager.
func RegisterDefaultNotifications(nm *NotificationManager) error {
	for noticeType, template := range defaultTemplates {
		if err := nm.RegisterNotification(noticeType, template); err != nil {
			return err
		}
	}
	return nil
}
