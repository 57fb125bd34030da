// Package push delivers notifications to validator devices through an HTTP push gateway
// authenticated with an OAuth2 client-credentials token.
package push

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

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"voicetrust/backend/internal/security"
)

const defaultTimeout = 10 * time.Second

// ErrNotConfigured is returned when no gateway URL is set.
var ErrNotConfigured = errors.New("push: gateway not configured")

// Notification is the push payload.
type Notification struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	DeepLink string `json:"deep_link,omitempty"`
}

// Client posts notifications to the gateway using a cached bearer token.
type Client struct {
	baseURL string
	tokens  *security.TokenCache
	http    *http.Client
}

// NewClient returns a Client. httpClient may be nil.
func NewClient(baseURL string, tokens *security.TokenCache, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), tokens: tokens, http: httpClient}
}

// Send delivers n to deviceToken. A 401 drops the cached token and retries once.
func (c *Client) Send(ctx context.Context, deviceToken string, n Notification) error {
	if c == nil || c.baseURL == "" || c.tokens == nil {
		return ErrNotConfigured
	}
	if deviceToken == "" {
		return errors.New("push: empty device token")
	}
	payload, err := json.Marshal(struct {
		To           string       `json:"to"`
		Notification Notification `json:"notification"`
	}{To: deviceToken, Notification: n})
	if err != nil {
		return err
	}
	status, err := c.post(ctx, payload)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		c.tokens.Invalidate()
		if status, err = c.post(ctx, payload); err != nil {
			return err
		}
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("push: gateway returned status=%d", status)
	}
	return nil
}

func (c *Client) post(ctx context.Context, payload []byte) (int, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, fmt.Errorf("push: token: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/send", bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, nil
}

// defaultTokenLifetime applies when the token endpoint omits expires_in.
const defaultTokenLifetime = 5 * time.Minute

// ClientCredentials returns a TokenFetcher for the OAuth2 client-credentials grant at tokenURL.
// Credentials are sent with HTTP basic auth. httpClient may be nil.
func ClientCredentials(httpClient *http.Client, tokenURL, clientID, clientSecret string) security.TokenFetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	return func(ctx context.Context) (string, time.Time, error) {
		tok, err := cfg.Token(context.WithValue(ctx, oauth2.HTTPClient, httpClient))
		if err != nil {
			return "", time.Time{}, fmt.Errorf("push: fetch token: %w", err)
		}
		exp := tok.Expiry
		if exp.IsZero() {
			exp = time.Now().Add(defaultTokenLifetime)
		}
		return tok.AccessToken, exp, nil
	}
}
