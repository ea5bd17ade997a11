// internal/services/notification_service.go
package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/verifyhub/internal/config"
	"github.com/javajoker/verifyhub/internal/models"
)

// Mailer delivers one rendered message.
type Mailer interface {
	Send(settings *SMTPSettings, to, subject, body string) error
}

type smtpMailer struct{}

func (smtpMailer) Send(settings *SMTPSettings, to, subject, body string) error {
	addr := net.JoinHostPort(settings.Host, strconv.Itoa(settings.Port))
	from := settings.FromEmail
	if settings.FromName != "" {
		from = fmt.Sprintf("%s <%s>", settings.FromName, settings.FromEmail)
	}
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s", from, to, subject, body))

	var auth smtp.Auth
	if settings.Username != "" {
		auth = smtp.PlainAuth("", settings.Username, settings.Password, settings.Host)
	}

	// Port 465 is implicit TLS; anything else negotiates STARTTLS inside SendMail.
	if settings.EnableSSL && settings.Port == 465 {
		conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: settings.Host, MinVersion: tls.VersionTLS12})
		if err != nil {
			return err
		}
		client, err := smtp.NewClient(conn, settings.Host)
		if err != nil {
			return err
		}
		defer client.Close()
		if auth != nil {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
		if err := client.Mail(settings.FromEmail); err != nil {
			return err
		}
		if err := client.Rcpt(to); err != nil {
			return err
		}
		w, err := client.Data()
		if err != nil {
			return err
		}
		if _, err := w.Write(msg); err != nil {
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		return client.Quit()
	}
	return smtp.SendMail(addr, auth, settings.FromEmail, []string{to}, msg)
}

type NotificationService struct {
	settings *SettingsService
	platform config.PlatformConfig
	mailer   Mailer
}

type EmailTemplate struct {
	Subject string
	Body    string
}

func NewNotificationService(settings *SettingsService, platform config.PlatformConfig) *NotificationService {
	return &NotificationService{
		settings: settings,
		platform: platform,
		mailer:   smtpMailer{},
	}
}

// SendLicenseIssued tells the owner a new license key is ready.
func (s *NotificationService) SendLicenseIssued(ctx context.Context, user *models.User, license *models.License) error {
	data := map[string]interface{}{
		"Name":      user.Name,
		"Key":       license.Key,
		"Product":   productName(license),
		"ExpiresAt": license.ExpiresAt.Format("2006-01-02"),
		"PortalURL": s.portalURL("/licenses"),
	}
	return s.send(ctx, user.Email, "license_issued", data)
}

func (s *NotificationService) SendLicenseStatusChanged(ctx context.Context, user *models.User, license *models.License) error {
	data := map[string]interface{}{
		"Name":       user.Name,
		"Key":        license.Key,
		"Product":    productName(license),
		"Status":     string(license.Status),
		"RenewalURL": s.portalURL("/licenses/" + license.ID.String() + "/renew"),
	}
	return s.send(ctx, user.Email, "license_status", data)
}

func (s *NotificationService) send(ctx context.Context, to, templateType string, data map[string]interface{}) error {
	settings, err := s.settings.SMTP(ctx)
	if err != nil {
		return err
	}

	tmpl := s.getEmailTemplate(templateType)
	subject, err := s.renderTemplate(tmpl.Subject, data)
	if err != nil {
		return fmt.Errorf("failed to render email subject: %w", err)
	}
	body, err := s.renderTemplate(tmpl.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	if !settings.Configured() {
		logrus.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("SMTP not configured, email skipped")
		return nil
	}
	if err := s.mailer.Send(settings, to, subject, body); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// Notify runs fn in the background with its own deadline. Delivery failures are
// logged, never returned to the request that triggered them.
func (s *NotificationService) Notify(fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			logrus.WithError(err).Warn("Notification delivery failed")
		}
	}()
}

func (s *NotificationService) portalURL(path string) string {
	return strings.TrimRight(s.platform.BaseDomain, "/") + path
}

func (s *NotificationService) renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("email").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *NotificationService) getEmailTemplate(templateType string) EmailTemplate {
	templates := map[string]EmailTemplate{
		"license_issued": {
			Subject: "Your {{.Product}} license is ready",
			Body: `
				<h2>Hello {{.Name}},</h2>
				<p>Your license for <strong>{{.Product}}</strong> has been issued.</p>
				<p>License key: <code>{{.Key}}</code></p>
				<p>Valid until {{.ExpiresAt}}.</p>
				<p><a href="{{.PortalURL}}">Manage your licenses</a></p>
			`,
		},
		"license_status": {
			Subject: "Your {{.Product}} license is now {{.Status}}",
			Body: `
				<h2>Hello {{.Name}},</h2>
				<p>The license <code>{{.Key}}</code> for <strong>{{.Product}}</strong> is now <strong>{{.Status}}</strong>.</p>
				<p><a href="{{.RenewalURL}}">Renew or review this license</a></p>
			`,
		},
	}

	if tmpl, exists := templates[templateType]; exists {
		return tmpl
	}

	return EmailTemplate{
		Subject: "VerifyHub notification",
		Body:    "<p>You have a new notification from VerifyHub.</p>",
	}
}

func productName(license *models.License) string {
	if license.Product != nil {
		return license.Product.Name
	}
	return "VerifyHub"
}
