package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/prudhvinik1/devicerelay/internal/models"
)

const maxErrorBody = 512

// TokenSource yields the bearer token sent with each request.
type TokenSource interface {
	Sign() (string, error)
}

// APINotificationRepository creates notifications through the external
// persistence API (POST {baseURL}/notifications).
type APINotificationRepository struct {
	endpoint string
	client   *http.Client
	tokens   TokenSource
}

// NewAPINotificationRepository builds the client. tokens may be nil when the
// API accepts unauthenticated calls.
func NewAPINotificationRepository(baseURL string, client *http.Client, tokens TokenSource) *APINotificationRepository {
	if client == nil {
		client = http.DefaultClient
	}
	return &APINotificationRepository{
		endpoint: strings.TrimRight(baseURL, "/") + "/notifications",
		client:   client,
		tokens:   tokens,
	}
}

// createResponse covers the envelopes the API has been seen to reply with:
// a bare object, or one wrapped in "data" or "notification".
type createResponse struct {
	ID           models.FlexString `json:"id"`
	Data         *createResponse   `json:"data"`
	Notification *createResponse   `json:"notification"`
}

func (r *createResponse) id() string {
	if r == nil {
		return ""
	}
	if r.ID != "" {
		return r.ID.String()
	}
	if id := r.Data.id(); id != "" {
		return id
	}
	return r.Notification.id()
}

func (r *APINotificationRepository) Create(ctx context.Context, record *models.NotificationRecord) (string, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if r.tokens != nil {
		token, err := r.tokens.Sign()
		if err != nil {
			return "", fmt.Errorf("failed to sign service token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call persistence API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("persistence API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var created createResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode persistence response: %w", err)
	}
	id := created.id()
	if id == "" {
		return "", ErrMissingID
	}
	return id, nil
}
