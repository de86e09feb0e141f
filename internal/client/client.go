// Package client talks to the funding-call API and keeps a local mirror of
// the last listing whose statuses stay correct as time passes.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ujpm/GGH-website-sub000/internal/auth"
	"github.com/ujpm/GGH-website-sub000/internal/funding"
	"github.com/ujpm/GGH-website-sub000/internal/models"
)

// APIError is a non-2xx response. It is terminal: the client never retries.
type APIError struct {
	StatusCode int
	Message    string
	Details    map[string]string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: HTTP %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// New returns a client for the API rooted at baseURL. A nil httpClient gets
// a client with a 15s timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) { c.token = token }

func (c *Client) ListCalls(ctx context.Context, p funding.ListParams) (*funding.ListResult, error) {
	var out funding.ListResult
	if err := c.do(ctx, http.MethodGet, "/funding-calls?"+EncodeListParams(p).Encode(), nil, &out); err != nil {
		return nil, err
	}
	if out.Calls == nil {
		out.Calls = []models.FundingCall{}
	}
	return &out, nil
}

func (c *Client) GetCall(ctx context.Context, id string) (*models.FundingCall, error) {
	var out models.FundingCall
	if err := c.do(ctx, http.MethodGet, "/funding-calls/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Stats(ctx context.Context) (*funding.Stats, error) {
	var out funding.Stats
	if err := c.do(ctx, http.MethodGet, "/funding-stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*auth.AuthResponse, error) {
	var out auth.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", auth.LoginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out, nil
}

// EncodeListParams is the inverse of funding.ParseListParams. Zero values are
// omitted so the server applies its defaults.
func EncodeListParams(p funding.ListParams) url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("type", p.Type)
	set("status", p.Status)
	set("search", p.Search)
	set("sortBy", p.SortBy)
	set("sortOrder", p.SortOrder)
	if p.Featured != nil {
		q.Set("featured", strconv.FormatBool(*p.Featured))
	}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	return q
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Error   string            `json:"error"`
			Details map[string]string `json:"details"`
		}
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Message = payload.Error
			apiErr.Details = payload.Details
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// RecomputeJob is the admin view of a background status recompute.
type RecomputeJob struct {
	ID        string                   `json:"id"`
	Status    string                   `json:"status"`
	StartedAt time.Time                `json:"started_at"`
	EndedAt   time.Time                `json:"ended_at"`
	Duration  string                   `json:"duration"`
	Result    *funding.RecomputeResult `json:"result"`
	Error     string                   `json:"error"`
}

func (j *RecomputeJob) Done() bool {
	return j.Status == "completed" || j.Status == "failed"
}

// StartRecompute asks the server to re-derive every stored status in the
// background and returns the job id. Requires an admin token.
func (c *Client) StartRecompute(ctx context.Context) (string, error) {
	var out struct {
		JobID string `json:"job_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/admin/recompute-status", nil, &out); err != nil {
		return "", err
	}
	return out.JobID, nil
}

func (c *Client) RecomputeJob(ctx context.Context, id string) (*RecomputeJob, error) {
	var out RecomputeJob
	if err := c.do(ctx, http.MethodGet, "/admin/jobs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
