// Package notion implements store.Backend on the Notion REST API.
package notion

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

	"feedsync/internal/model"
	"feedsync/internal/store"
)

const (
	DefaultBaseURL = "https://api.notion.com/v1"
	APIVersion     = "2022-06-28"
)

// APIError is a non-2xx answer other than rate limiting.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("notion: HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("notion: HTTP %d %s: %s", e.Status, e.Code, e.Message)
}

type Options struct {
	BaseURL    string
	Token      string
	DatabaseID string
	HTTPClient *http.Client
}

// Client talks to one Notion database.
type Client struct {
	baseURL    string
	token      string
	databaseID string
	httpClient *http.Client
}

var _ store.Backend = (*Client)(nil)

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		token:      opts.Token,
		databaseID: opts.DatabaseID,
		httpClient: httpClient,
	}
}

func (c *Client) FindByGUID(ctx context.Context, guid string) (*model.RemoteRecord, error) {
	req := queryRequest{
		Filter:   queryFilter{Property: PropGUID, RichText: textFilter{Equals: guid}},
		PageSize: 1,
	}
	var resp queryResponse
	if err := c.doJSONRequest(ctx, http.MethodPost, "/databases/"+url.PathEscape(c.databaseID)+"/query", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	record := resp.Results[0].record()
	return &record, nil
}

func (c *Client) Create(ctx context.Context, props store.Properties) (model.RemoteRecord, error) {
	req := createPageRequest{
		Parent:     parent{DatabaseID: c.databaseID},
		Properties: BuildPageProperties(props),
	}
	var page Page
	if err := c.doJSONRequest(ctx, http.MethodPost, "/pages", req, &page); err != nil {
		return model.RemoteRecord{}, err
	}
	return page.record(), nil
}

func (c *Client) Update(ctx context.Context, id string, props store.Properties) (model.RemoteRecord, error) {
	req := updatePageRequest{Properties: BuildPageProperties(props)}
	var page Page
	if err := c.doJSONRequest(ctx, http.MethodPatch, "/pages/"+url.PathEscape(id), req, &page); err != nil {
		return model.RemoteRecord{}, err
	}
	return page.record(), nil
}

// Ping retrieves the target database.
func (c *Client) Ping(ctx context.Context) error {
	return c.doJSONRequest(ctx, http.MethodGet, "/databases/"+url.PathEscape(c.databaseID), nil, nil)
}

func (c *Client) doJSONRequest(ctx context.Context, method, path string, payload, result any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", APIVersion)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &store.RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if result == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// parseRetryAfter reads Retry-After as whole seconds. Anything else yields
// zero and the caller falls back to its default wait.
func parseRetryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}

	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil && (body.Code != "" || body.Message != "") {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(data))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
