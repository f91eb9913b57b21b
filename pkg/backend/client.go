package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBytes = 1 << 20

// ErrNotFound indicates the requested record does not exist on the backend.
// For assignment fetches this is the normal idle state of an instance that
// has not been pointed at a guild yet.
var ErrNotFound = errors.New("backend: not found")

// ErrLeaseConflict indicates a claim renewal was rejected because the
// previous token no longer matches the backend's record - another worker
// has taken the instance over since the last renewal.
var ErrLeaseConflict = errors.New("backend: lease conflict")

// Client is a stateless HTTP client for the backend API.
// It is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a backend client for the given base URL and API key.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Ping verifies backend connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/v1/health", nil, nil)
}

// GetUnclaimedInstance asks the backend for an instance id that no worker
// currently holds a valid lease on.
func (c *Client) GetUnclaimedInstance(ctx context.Context) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/instances/unclaimed", nil, &resp); err != nil {
		return "", fmt.Errorf("get unclaimed instance: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("get unclaimed instance: backend returned empty id")
	}
	return resp.ID, nil
}

// ClaimInstance claims or renews a lease on an instance. The backend
// compares req.PreviousToken against its current record and answers with a
// conflict (mapped to ErrLeaseConflict) when they differ.
func (c *Client) ClaimInstance(ctx context.Context, req ClaimRequest) (InstanceDetails, error) {
	var details InstanceDetails
	path := fmt.Sprintf("/v1/instances/%s/claim", url.PathEscape(req.InstanceID))
	if err := c.do(ctx, http.MethodPost, path, req, &details); err != nil {
		return InstanceDetails{}, fmt.Errorf("claim instance %s: %w", req.InstanceID, err)
	}
	return details, nil
}

// GetAssignedGuildOptions fetches the guild configuration the instance is
// currently assigned to. Returns ErrNotFound while the instance is idle.
func (c *Client) GetAssignedGuildOptions(ctx context.Context, instanceID string) (GuildOptions, error) {
	var opts GuildOptions
	path := fmt.Sprintf("/v1/instances/%s/guild", url.PathEscape(instanceID))
	if err := c.do(ctx, http.MethodGet, path, nil, &opts); err != nil {
		return GuildOptions{}, fmt.Errorf("get guild options for %s: %w", instanceID, err)
	}
	return opts, nil
}

// GetCurrentLobbies fetches the point-in-time presence snapshot of all
// active lobbies.
func (c *Client) GetCurrentLobbies(ctx context.Context) ([]Lobby, error) {
	var lobbies []Lobby
	if err := c.do(ctx, http.MethodGet, "/v1/lobbies", nil, &lobbies); err != nil {
		return nil, fmt.Errorf("get current lobbies: %w", err)
	}
	return lobbies, nil
}

// GetMembersByLogin resolves player logins against the member directory.
// Logins without a directory entry are absent from the returned map.
func (c *Client) GetMembersByLogin(ctx context.Context, logins []string) (map[string]Member, error) {
	if len(logins) == 0 {
		return map[string]Member{}, nil
	}
	var members []Member
	path := "/v1/members?logins=" + url.QueryEscape(strings.Join(logins, ","))
	if err := c.do(ctx, http.MethodGet, path, nil, &members); err != nil {
		return nil, fmt.Errorf("get members by login: %w", err)
	}
	directory := make(map[string]Member, len(members))
	for _, m := range members {
		directory[m.Login] = m
	}
	return directory, nil
}

// GetCurrentEvent fetches the currently running event, if any.
// Returns ErrNotFound when no event is active.
func (c *Client) GetCurrentEvent(ctx context.Context) (Event, error) {
	var event Event
	if err := c.do(ctx, http.MethodGet, "/v1/events/current", nil, &event); err != nil {
		return Event{}, fmt.Errorf("get current event: %w", err)
	}
	return event, nil
}

// SetGuildLobbyLinks replaces the materialized join-link list for a guild.
func (c *Client) SetGuildLobbyLinks(ctx context.Context, guildID string, links []LobbyLink) error {
	path := fmt.Sprintf("/v1/guilds/%s/lobby-links", url.PathEscape(guildID))
	if err := c.do(ctx, http.MethodPut, path, links, nil); err != nil {
		return fmt.Errorf("set lobby links for guild %s: %w", guildID, err)
	}
	return nil
}

// do performs one JSON request/response round trip. Conflict and not-found
// statuses map to their sentinel errors so callers can branch with errors.Is.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return ErrLeaseConflict
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return fmt.Errorf("%s %s: %s", method, path, apiErrorMessage(resp))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// apiErrorMessage extracts the backend's error message from a non-2xx
// response, falling back to the HTTP status line.
func apiErrorMessage(resp *http.Response) string {
	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&apiErr); err == nil && apiErr.Error != "" {
		return apiErr.Error
	}
	return resp.Status
}

// IsNotFound returns true if the error is a backend "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsLeaseConflict returns true if the error is a stale-token claim rejection.
func IsLeaseConflict(err error) bool {
	return errors.Is(err, ErrLeaseConflict)
}
