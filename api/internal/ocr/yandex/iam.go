package yandex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"exam-ocr/api/internal/ocr"
)

const (
	defaultIAMURL = "https://iam.api.cloud.yandex.net/iam/v1/tokens"
	// used when the exchange omits expiresAt; IAM tokens live up to 12h
	fallbackTokenTTL = 11 * time.Hour
	// refresh this long before the token actually expires
	refreshSkew = 5 * time.Minute
)

// IamClient trades the OAuth token for short-lived IAM tokens, one exchange at a time.
type IamClient struct {
	httpc *http.Client
	url   string
	oauth string
	now   func() time.Time

	mu      sync.Mutex
	current string
	renewAt time.Time
}

func NewIamClient(oauth string) *IamClient {
	return &IamClient{
		httpc: &http.Client{Timeout: 20 * time.Second},
		url:   defaultIAMURL,
		oauth: oauth,
		now:   time.Now,
	}
}

type iamResponse struct {
	IamToken  string    `json:"iamToken"`
	ExpiresAt time.Time `json:"expiresAt"`
	Message   string    `json:"message"`
}

// Token returns the cached IAM token, exchanging the OAuth token when it is missing or stale.
func (c *IamClient) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != "" && c.now().Before(c.renewAt) {
		return c.current, nil
	}

	tok, err := c.exchange(ctx)
	if err != nil {
		return "", err
	}
	expires := tok.ExpiresAt
	if expires.IsZero() {
		expires = c.now().Add(fallbackTokenTTL)
	}
	c.current = tok.IamToken
	c.renewAt = expires.Add(-refreshSkew)
	return c.current, nil
}

func (c *IamClient) exchange(ctx context.Context) (iamResponse, error) {
	body, _ := json.Marshal(map[string]string{"yandexPassportOauthToken": c.oauth})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return iamResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return iamResponse{}, fmt.Errorf("iam exchange: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return iamResponse{}, fmt.Errorf("iam exchange: %w", err)
	}

	var out iamResponse
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode != http.StatusOK {
		return iamResponse{}, &ocr.ServiceError{
			Engine:  "yandex",
			Message: out.Message,
			Err:     fmt.Errorf("iam status %d", resp.StatusCode),
		}
	}
	if out.IamToken == "" {
		return iamResponse{}, errors.New("iam exchange: empty token")
	}
	return out, nil
}

// Invalidate forgets the cached token; the next Token call exchanges again.
func (c *IamClient) Invalidate() {
	c.mu.Lock()
	c.current = ""
	c.mu.Unlock()
}
