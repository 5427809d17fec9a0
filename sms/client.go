package sms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/civicline/civicline-relay/config"
	"github.com/civicline/civicline-relay/model"
)

// Client sends SMS through a Twilio-style messages API: a form-encoded POST
// to /Accounts/{sid}/Messages.json with basic auth on the account
// credentials. It implements verification.Notifier.
type Client struct {
	cfg        config.SMSGateway
	httpClient *http.Client
}

func NewClient(cfg config.SMSGateway) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

func (c *Client) messagesURL() string {
	return fmt.Sprintf("%s/Accounts/%s/Messages.json", strings.TrimSuffix(c.cfg.BaseURL, "/"), c.cfg.AccountSID)
}

// SendCode delivers a verification code to one phone number.
func (c *Client) SendCode(ctx context.Context, phoneNumber, code string) error {
	form := url.Values{}
	form.Set("To", phoneNumber)
	form.Set("From", c.cfg.FromNumber)
	form.Set("Body", fmt.Sprintf("Your verification code is: %s", code))
	return c.post(ctx, form)
}

// SendAnnouncement fans one announcement out to every recipient. A failed
// recipient is skipped rather than aborting the loop; the failures are
// joined into the returned error.
func (c *Client) SendAnnouncement(ctx context.Context, ann model.Announcement, recipients []string) error {
	body := fmt.Sprintf("%s\n\n%s", ann.Title, ann.Body)
	var errs []error
	for _, to := range recipients {
		form := url.Values{}
		form.Set("To", to)
		form.Set("From", c.cfg.FromNumber)
		form.Set("Body", body)
		for _, u := range ann.MediaURLs {
			form.Add("MediaUrl", u)
		}
		if err := c.post(ctx, form); err != nil {
			errs = append(errs, fmt.Errorf("fail to send announcement to %s, err: %w", to, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Client) post(ctx context.Context, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("fail to build sms request, err: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fail to call sms gateway, err: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
