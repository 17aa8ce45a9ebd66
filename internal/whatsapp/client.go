package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Sender delivers one-time codes to a phone number in E.164 form.
type Sender interface {
	SendCode(ctx context.Context, toE164, code string) error
}

// Settings configure the WhatsApp Cloud API client.
type Settings struct {
	Enabled  bool
	Token    string
	PhoneID  string
	Template string
	Language string
	BaseURL  string
	Timeout  time.Duration
}

// ErrDisabled signals that WhatsApp delivery is switched off via configuration.
var ErrDisabled = errors.New("whatsapp: delivery disabled")

const defaultBaseURL = "https://graph.facebook.com/v19.0"

// Client sends template messages through the WhatsApp Cloud API.
type Client struct {
	cfg  Settings
	http *http.Client
}

// NewClient validates settings and builds a Client.
func NewClient(cfg Settings) (*Client, error) {
	if cfg.Enabled {
		if strings.TrimSpace(cfg.Token) == "" || strings.TrimSpace(cfg.PhoneID) == "" {
			return nil, errors.New("whatsapp: token and phone id are required when enabled")
		}
	}
	if cfg.Template == "" {
		cfg.Template = "otp_login"
	}
	if cfg.Language == "" {
		cfg.Language = "pt_BR"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type templatePayload struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Template         template `json:"template"`
}

type template struct {
	Name       string      `json:"name"`
	Language   language    `json:"language"`
	Components []component `json:"components"`
}

type language struct {
	Code string `json:"code"`
}

type component struct {
	Type       string      `json:"type"`
	Parameters []parameter `json:"parameters"`
}

type parameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SendCode posts a template message carrying the one-time code.
func (c *Client) SendCode(ctx context.Context, toE164, code string) error {
	if !c.cfg.Enabled {
		return ErrDisabled
	}
	if ctx == nil {
		ctx = context.Background()
	}

	payload := templatePayload{
		MessagingProduct: "whatsapp",
		To:               toE164,
		Type:             "template",
		Template: template{
			Name:     c.cfg.Template,
			Language: language{Code: c.cfg.Language},
			Components: []component{{
				Type:       "body",
				Parameters: []parameter{{Type: "text", Text: code}},
			}},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("whatsapp: marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.PhoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("whatsapp: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: send template: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("whatsapp: api status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	return nil
}
