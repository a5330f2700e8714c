package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultTokenURL = "https://oauth.yandex.ru/token"

	grantType        = "urn:ietf:params:oauth:grant-type:token-exchange"
	subjectTokenType = "urn:yandex:params:oauth:token-type:uid"

	// A token this close to its expiry is treated as stale.
	expiryMargin = 60 * time.Second
)

// Credential is a bearer token with its expiry instant.
type Credential struct {
	Value     string
	ExpiresAt time.Time
}

// Fresh reports whether the credential is usable at the given instant.
func (c Credential) Fresh(now time.Time) bool {
	return c.Value != "" && now.Add(expiryMargin).Before(c.ExpiresAt)
}

// Options configures the token provider.
type Options struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// Provider exchanges a user id for a bearer token scoped to that user.
type Provider struct {
	opts   Options
	client *http.Client
}

func NewProvider(opts Options) *Provider {
	if opts.TokenURL == "" {
		opts.TokenURL = defaultTokenURL
	}
	return &Provider{
		opts:   opts,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// HolderFor returns a credential holder for one user. The holder owns its
// cached credential; nothing is shared across holders.
func (p *Provider) HolderFor(userID int64) *Holder {
	return &Holder{provider: p, userID: userID}
}

// TokenFor is a one-shot convenience around HolderFor for callers that keep
// no holder of their own.
func (p *Provider) TokenFor(ctx context.Context, userID int64) (string, error) {
	return p.HolderFor(userID).Token(ctx)
}

// Holder caches one user's credential and refreshes it when it goes stale.
type Holder struct {
	provider *Provider
	userID   int64

	mu   sync.Mutex
	cred Credential
}

// Token returns the cached credential value, exchanging for a fresh one
// only when the cached one has expired.
func (h *Holder) Token(ctx context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cred.Fresh(time.Now()) {
		return h.cred.Value, nil
	}

	cred, err := h.provider.exchange(ctx, h.userID)
	if err != nil {
		return "", err
	}
	h.cred = cred
	return cred.Value, nil
}

func (p *Provider) exchange(ctx context.Context, userID int64) (Credential, error) {
	form := url.Values{}
	form.Set("grant_type", grantType)
	form.Set("client_id", p.opts.ClientID)
	form.Set("client_secret", p.opts.ClientSecret)
	form.Set("subject_token", strconv.FormatInt(userID, 10))
	form.Set("subject_token_type", subjectTokenType)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.opts.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("token exchange for user %d: %w", userID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Credential{}, fmt.Errorf("token exchange for user %d: %s: %s", userID, resp.Status, body)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Credential{}, fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return Credential{}, fmt.Errorf("token exchange for user %d: empty access token", userID)
	}

	return Credential{
		Value:     payload.AccessToken,
		ExpiresAt: time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second),
	}, nil
}
