// Package sms delivers text messages to identities through the SMS Local bulk API.
package sms

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

const (
	defaultTimeout = 15 * time.Second
	defaultBaseURL = "https://www.smslocal.com/dev/bulkV2"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("sms: API key not configured")

// SMSLocalClient sends transactional SMS via the SMS Local API.
type SMSLocalClient struct {
	APIKey     string
	BaseURL    string
	Sender     string
	HTTPClient *http.Client
}

// NewSMSLocalClient returns a client that uses the given API key and optional base URL/sender.
func NewSMSLocalClient(apiKey, baseURL, sender string) *SMSLocalClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &SMSLocalClient{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Sender:     sender,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

type sendRequest struct {
	Route    string `json:"route"`
	Numbers  string `json:"numbers"`
	Message  string `json:"message"`
	SenderID string `json:"sender_id,omitempty"`
}

// Send delivers body to an E.164 phone number. The number is sent as digits only.
// The body is never logged or echoed in errors.
func (c *SMSLocalClient) Send(ctx context.Context, phone, body string) error {
	if c.APIKey == "" {
		return ErrNotConfigured
	}
	numbers := digitsOnly(phone)
	if numbers == "" {
		return fmt.Errorf("sms: invalid phone number")
	}
	raw, err := json.Marshal(sendRequest{Route: "q", Numbers: numbers, Message: body, SenderID: c.Sender})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
