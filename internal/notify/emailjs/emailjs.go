package emailjs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vbonduro/viatico/internal/notify"
)

const DefaultURL = "https://api.emailjs.com/api/v1.0/email/send"

// maxErrorBody bounds how much of an error response is kept in the error.
const maxErrorBody = 512

type request struct {
	ServiceID      string         `json:"service_id"`
	TemplateID     string         `json:"template_id"`
	UserID         string         `json:"user_id"`
	AccessToken    string         `json:"accessToken,omitempty"`
	TemplateParams templateParams `json:"template_params"`
}

type templateParams struct {
	ToEmail     string `json:"to_email"`
	Subject     string `json:"subject"`
	MessageHTML string `json:"message_html"`
}

// Config identifies the EmailJS service, template and account used to send.
type Config struct {
	URL         string
	ServiceID   string
	TemplateID  string
	PublicKey   string
	AccessToken string
}

type EmailJSMailer struct {
	cfg    Config
	client *http.Client
}

func NewEmailJSMailer(cfg Config) *EmailJSMailer {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	return &EmailJSMailer{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (m *EmailJSMailer) Send(ctx context.Context, msg notify.Message) error {
	payload, err := json.Marshal(request{
		ServiceID:   m.cfg.ServiceID,
		TemplateID:  m.cfg.TemplateID,
		UserID:      m.cfg.PublicKey,
		AccessToken: m.cfg.AccessToken,
		TemplateParams: templateParams{
			ToEmail:     msg.To,
			Subject:     msg.Subject,
			MessageHTML: msg.HTMLBody,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call emailjs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("emailjs returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
