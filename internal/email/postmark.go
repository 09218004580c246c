package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const postmarkURL = "https://api.postmarkapp.com/email"

var ErrNotConfigured = errors.New("email client not configured: missing server token")

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendMagicLink emails a single-use sign-in or sign-up confirmation link.
func (c *Client) SendMagicLink(ctx context.Context, toEmail, token, purpose string) error {
	var subject, action string
	switch purpose {
	case "login":
		subject = "Sign in to Budget Compass"
		action = "sign in"
	case "signup":
		subject = "Confirm your Budget Compass account"
		action = "confirm your email"
	default:
		subject = "Your Budget Compass link"
		action = "continue"
	}

	link := fmt.Sprintf("%s/auth/verify?token=%s", c.baseURL, token)
	return c.send(ctx, postmarkEmail{
		From:    c.fromEmail,
		To:      toEmail,
		Subject: subject,
		TextBody: fmt.Sprintf(
			"Click the link below to %s:\n\n%s\n\nThis link expires in 15 minutes.", action, link),
		HtmlBody: fmt.Sprintf(
			`<p>Click the link below to %s:</p><p><a href="%s">%s</a></p><p>This link expires in 15 minutes.</p>`,
			action, link, action),
	})
}

// SendInvite emails a household share link.
func (c *Client) SendInvite(ctx context.Context, toEmail, link, householdName string) error {
	subject := "You've been invited to a household budget"
	if householdName != "" {
		subject = fmt.Sprintf("You've been invited to %s on Budget Compass", householdName)
	}
	return c.send(ctx, postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  subject,
		TextBody: fmt.Sprintf("Open the link below to join the household budget:\n\n%s", link),
		HtmlBody: fmt.Sprintf(`<p>Open the link below to join the household budget:</p><p><a href="%s">Join</a></p>`, link),
	})
}

func (c *Client) send(ctx context.Context, payload postmarkEmail) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postmarkURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
