package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AdminClient resolves users through the auth server's admin API using the service
// role key.
type AdminClient struct {
	BaseURL        string
	ServiceRoleKey string
	HTTP           *http.Client
}

// NewAdminClient builds an admin API client with a bounded timeout.
func NewAdminClient(baseURL, serviceRoleKey string, timeout time.Duration) *AdminClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AdminClient{
		BaseURL:        baseURL,
		ServiceRoleKey: serviceRoleKey,
		HTTP:           &http.Client{Timeout: timeout},
	}
}

// FindByID fetches GET /auth/v1/admin/users/{id}.
func (c *AdminClient) FindByID(ctx context.Context, id string) (User, error) {
	if c.BaseURL == "" || c.ServiceRoleKey == "" {
		return User{}, fmt.Errorf("identity admin client is not configured")
	}
	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	endpoint := strings.TrimRight(c.BaseURL, "/") + "/auth/v1/admin/users/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return User{}, err
	}
	req.Header.Set("apikey", c.ServiceRoleKey)
	req.Header.Set("Authorization", "Bearer "+c.ServiceRoleKey)
	req.Header.Set("Accept", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("lookup user %s: %w", id, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return User{}, ErrNotFound
	case res.StatusCode < 200 || res.StatusCode > 299:
		return User{}, fmt.Errorf("lookup user %s: unexpected status %d", id, res.StatusCode)
	}

	var payload struct {
		ID        string    `json:"id"`
		Email     string    `json:"email"`
		Phone     string    `json:"phone"`
		CreatedAt time.Time `json:"created_at"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return User{}, fmt.Errorf("decode user %s: %w", id, err)
	}
	if payload.ID == "" {
		return User{}, ErrNotFound
	}
	return User{
		ID:        payload.ID,
		Email:     strings.TrimSpace(payload.Email),
		Phone:     payload.Phone,
		CreatedAt: payload.CreatedAt.UTC(),
	}, nil
}
