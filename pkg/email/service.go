package email

import (
	"fmt"
	"log"
	"strconv"

	"github.com/resend/resend-go/v2"
	"gopkg.in/gomail.v2"
)

type Service interface {
	SendEmail(to, subject, body string) error
}

// Config selects and configures a provider: "resend", "smtp" or "none".
type Config struct {
	Provider     string
	From         string
	ResendAPIKey string
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
}

func New(cfg Config) (Service, error) {
	switch cfg.Provider {
	case "", "none":
		return NopService{}, nil
	case "resend":
		return NewResendService(cfg.ResendAPIKey, cfg.From)
	case "smtp":
		return NewSMTPService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.From)
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

type ResendService struct {
	from   string
	client *resend.Client
}

func NewResendService(apiKey, from string) (*ResendService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend API key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("from email address is required")
	}

	return &ResendService{
		from:   from,
		client: resend.NewClient(apiKey),
	}, nil
}

func (s *ResendService) SendEmail(to, subject, body string) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Html:    body,
		Subject: subject,
	}

	sent, err := s.client.Emails.Send(params)
	if err != nil {
		log.Printf("Failed to send email via Resend: %v", err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Printf("Email sent to %s, message ID: %s", to, sent.Id)
	return nil
}

type SMTPService struct {
	from   string
	dialer *gomail.Dialer
}

func NewSMTPService(host, port, username, password, from string) (*SMTPService, error) {
	if host == "" {
		return nil, fmt.Errorf("SMTP host is not configured")
	}
	if from == "" {
		return nil, fmt.Errorf("from email address is required")
	}

	p, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP port: %s", port)
	}

	return &SMTPService{
		from:   from,
		dialer: gomail.NewDialer(host, p, username, password),
	}, nil
}

func (s *SMTPService) message(to, subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	return m
}

func (s *SMTPService) SendEmail(to, subject, body string) error {
	if err := s.dialer.DialAndSend(s.message(to, subject, body)); err != nil {
		log.Printf("Failed to send email via SMTP: %v", err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Printf("Email sent to %s", to)
	return nil
}

// NopService drops every message.
type NopService struct{}

func (NopService) SendEmail(to, subject, body string) error {
	return nil
}
