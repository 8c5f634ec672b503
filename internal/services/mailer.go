package services

import (
	"net/mail"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/mailer"
)

// AppMailer sends through the application's configured mail client, so SMTP
// settings and the sender identity stay in one place.
type AppMailer struct {
	app core.App
}

func NewAppMailer(app core.App) *AppMailer {
	return &AppMailer{app: app}
}

func (m *AppMailer) Send(to mail.Address, subject, html string) error {
	settings := m.app.Settings()

	return m.app.NewMailClient().Send(&mailer.Message{
		From: mail.Address{
			Name:    settings.Meta.SenderName,
			Address: settings.Meta.SenderAddress,
		},
		To:      []mail.Address{to},
		Subject: subject,
		HTML:    html,
	})
}
