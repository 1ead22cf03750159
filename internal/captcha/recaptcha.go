// Package captcha verifies reCAPTCHA v3 tokens.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/blog-auth/pkg/domain"
)

const defaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

// Recaptcha checks client tokens against the siteverify endpoint.
type Recaptcha struct {
	secret     string
	verifyURL  string
	httpClient *http.Client
}

// Option configures a Recaptcha verifier.
type Option func(*Recaptcha)

// WithVerifyURL points the verifier at another siteverify endpoint.
func WithVerifyURL(u string) Option {
	return func(r *Recaptcha) { r.verifyURL = u }
}

// WithHTTPClient replaces the default client, which times out after 10s.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Recaptcha) { r.httpClient = c }
}

// NewRecaptcha creates a verifier using the given secret key.
func NewRecaptcha(secret string, opts ...Option) *Recaptcha {
	r := &Recaptcha{
		secret:     secret,
		verifyURL:  defaultVerifyURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type siteverifyResponse struct {
	Success     bool     `json:"success"`
	Score       float64  `json:"score"`
	Action      string   `json:"action"`
	Hostname    string   `json:"hostname"`
	ChallengeTS string   `json:"challenge_ts"`
	ErrorCodes  []string `json:"error-codes"`
}

// Verify returns the score Google assigned to token. A token Google rejects
// yields domain.ErrBotCheckFailed; transport and decoding problems are
// returned as plain errors.
func (r *Recaptcha) Verify(ctx context.Context, token, remoteIP string) (float64, error) {
	data := url.Values{
		"secret":   {r.secret},
		"response": {token},
	}
	if remoteIP != "" {
		data.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.verifyURL, strings.NewReader(data.Encode()))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("siteverify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("siteverify returned %d: %s", resp.StatusCode, string(body))
	}

	var result siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decode siteverify response: %w", err)
	}
	if !result.Success {
		return 0, fmt.Errorf("%w: %s", domain.ErrBotCheckFailed, strings.Join(result.ErrorCodes, ","))
	}
	return result.Score, nil
}
