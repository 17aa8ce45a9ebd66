package app

import (
	"github.com/gamelaunch/prereg/internal/database"
	"github.com/gamelaunch/prereg/internal/whatsapp"
	"github.com/gamelaunch/prereg/pkg/mail"
)

// SMTPSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// Settings converts WhatsAppConfig to the whatsapp package representation.
func (c WhatsAppConfig) Settings() whatsapp.Settings {
	return whatsapp.Settings{
		Enabled:  c.Enabled,
		Token:    c.Token,
		PhoneID:  c.PhoneID,
		Template: c.Template,
		Language: c.Language,
		BaseURL:  c.BaseURL,
		Timeout:  c.Timeout,
	}
}

// StoreConfig converts DatabaseConfig to the database package representation.
func (c DatabaseConfig) StoreConfig() database.Config {
	return database.Config{
		Driver:   c.Driver,
		Path:     c.Path,
		DSN:      c.DSN,
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Name:     c.Name,
		Options:  c.Options,
	}
}
