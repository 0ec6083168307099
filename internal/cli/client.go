package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// AuthResponse is the token envelope both signup and login return.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
}

func (c *Client) Signup(ctx context.Context, email, username, password string) (AuthResponse, error) {
	var out AuthResponse
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/signup", "", map[string]any{
		"email":    email,
		"username": username,
		"password": password,
	}, &out, "")
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	var out AuthResponse
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	}, &out, "")
	return out, err
}

func (c *Client) Studio(ctx context.Context, accessToken string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/studio", accessToken, nil, &out, "")
	return out, err
}

func (c *Client) SetAutoAdvance(ctx context.Context, accessToken string, enabled bool) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/studio/auto-advance", accessToken, map[string]any{
		"enabled": enabled,
	}, &out, "")
	return out, err
}

func (c *Client) AdvanceWeek(ctx context.Context, accessToken string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/studio/advance-week", accessToken, nil, &out, "")
	return out, err
}

func (c *Client) CreateFilm(ctx context.Context, accessToken, title, genre string, marketing, spend int64, releaseWeek, releaseYear int, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/films", accessToken, map[string]any{
		"title":            title,
		"genre":            genre,
		"marketing_budget": marketing,
		"production_spend": spend,
		"release_week":     releaseWeek,
		"release_year":     releaseYear,
	}, &out, idem)
	return out, err
}

func (c *Client) ListFilms(ctx context.Context, accessToken string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/films", accessToken, nil, &out, "")
	return out, err
}

func (c *Client) FilmDetail(ctx context.Context, accessToken string, filmID int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/films/%d", filmID), accessToken, nil, &out, "")
	return out, err
}

func (c *Client) Leaderboard(ctx context.Context, accessToken string, limit int) (map[string]any, error) {
	path := "/v1/leaderboard"
	if limit > 0 {
		path = fmt.Sprintf("/v1/leaderboard?limit=%d", limit)
	}
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, path, accessToken, nil, &out, "")
	return out, err
}

func (c *Client) CreateSession(ctx context.Context, accessToken string, maxPlayers int) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/sessions", accessToken, map[string]any{
		"max_players": maxPlayers,
	}, &out, "")
	return out, err
}

func (c *Client) JoinSession(ctx context.Context, accessToken, code string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/sessions/join", accessToken, map[string]any{
		"code": code,
	}, &out, "")
	return out, err
}

func (c *Client) OpenSessions(ctx context.Context, accessToken string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/sessions", accessToken, nil, &out, "")
	return out, err
}

func (c *Client) SessionState(ctx context.Context, accessToken string, sessionID int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/sessions/%d", sessionID), accessToken, nil, &out, "")
	return out, err
}

func (c *Client) SetReady(ctx context.Context, accessToken string, sessionID int64, ready bool) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/sessions/%d/ready", sessionID), accessToken, map[string]any{
		"ready": ready,
	}, &out, "")
	return out, err
}

func (c *Client) StartSession(ctx context.Context, accessToken string, sessionID int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/sessions/%d/start", sessionID), accessToken, nil, &out, "")
	return out, err
}

func (c *Client) AdvanceSession(ctx context.Context, accessToken string, sessionID int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/sessions/%d/advance", sessionID), accessToken, nil, &out, "")
	return out, err
}

func (c *Client) EndSession(ctx context.Context, accessToken string, sessionID int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/sessions/%d/end", sessionID), accessToken, nil, &out, "")
	return out, err
}

func (c *Client) Do(ctx context.Context, method, path, accessToken string, body map[string]any, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, method, path, accessToken, body, &out, idem)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path, accessToken string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
