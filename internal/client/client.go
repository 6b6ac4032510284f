// Package client talks to a remote data backend over the REST contract the
// runtime assumes: GET /api/data/{schemaId} with the effective query, count
// and mutation endpoints, and GET /api/schemas/{schemaId} for documents.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"metagrid/internal/entity"
	"metagrid/internal/query"
	"metagrid/internal/schema"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Pagination *struct {
		TotalItems int `json:"totalItems"`
		TotalPages int `json:"totalPages"`
	} `json:"pagination"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// FetchList implements query.Backend.
func (c *Client) FetchList(ctx context.Context, schemaID string, p query.ListParams) (*query.ListResult, error) {
	q := BuildListQuery(p)
	endpoint := fmt.Sprintf("%s/api/data/%s?%s", c.baseURL, url.PathEscape(schemaID), q.Encode())

	var headers http.Header
	if p.BypassCache {
		headers = http.Header{"Cache-Control": []string{"no-cache"}}
	}
	env, err := c.do(ctx, http.MethodGet, endpoint, nil, headers)
	if err != nil {
		return nil, err
	}

	var records []entity.Record
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &records); err != nil {
			return nil, fmt.Errorf("decode list data: %w", err)
		}
	}
	res := &query.ListResult{Records: records}
	if env.Pagination != nil {
		res.TotalItems = env.Pagination.TotalItems
		res.TotalPages = env.Pagination.TotalPages
	} else {
		res.TotalItems = len(records)
		res.TotalPages = 1
	}
	return res, nil
}

// BuildListQuery flattens ListParams onto the wire: search, structured
// filter keys spread at top level, comma-joined companyIds, assignment id
// lists, page, limit (integer or "all") and a sort spec of the form
// "-col1,col2".
func BuildListQuery(p query.ListParams) url.Values {
	q := url.Values{}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	for k, v := range p.Filters {
		q.Set(k, entity.DisplayString(v))
	}
	if len(p.CompanyIDs) > 0 {
		q.Set("companyIds", strings.Join(p.CompanyIDs, ","))
	}
	if len(p.AssignedToIDs) > 0 {
		q.Set("assignedToIds", strings.Join(p.AssignedToIDs, ","))
	}
	if len(p.CreatedByIDs) > 0 {
		q.Set("createdByIds", strings.Join(p.CreatedByIDs, ","))
	}
	if len(p.Sort) > 0 {
		parts := make([]string, 0, len(p.Sort))
		for _, s := range p.Sort {
			if s.Ascending {
				parts = append(parts, s.Column)
			} else {
				parts = append(parts, "-"+s.Column)
			}
		}
		q.Set("sort", strings.Join(parts, ","))
	}
	q.Set("page", fmt.Sprintf("%d", p.Page))
	q.Set("limit", p.PageSize.QueryValue())
	return q
}

// FetchCounts implements query.Backend.
func (c *Client) FetchCounts(ctx context.Context, schemaID, userID string, companyIDs []string) (*query.Counts, error) {
	q := url.Values{}
	if userID != "" {
		q.Set("userId", userID)
	}
	if len(companyIDs) > 0 {
		q.Set("companyIds", strings.Join(companyIDs, ","))
	}
	endpoint := fmt.Sprintf("%s/api/data/%s/count?%s", c.baseURL, url.PathEscape(schemaID), q.Encode())
	env, err := c.do(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return nil, err
	}
	var counts query.Counts
	if err := json.Unmarshal(env.Data, &counts); err != nil {
		return nil, fmt.Errorf("decode counts: %w", err)
	}
	return &counts, nil
}

// Create implements query.Backend.
func (c *Client) Create(ctx context.Context, schemaID string, values map[string]any) (entity.Record, error) {
	endpoint := fmt.Sprintf("%s/api/data/%s", c.baseURL, url.PathEscape(schemaID))
	return c.mutate(ctx, http.MethodPost, endpoint, values)
}

// Update implements query.Backend.
func (c *Client) Update(ctx context.Context, schemaID, id string, values map[string]any) (entity.Record, error) {
	endpoint := fmt.Sprintf("%s/api/data/%s/%s", c.baseURL, url.PathEscape(schemaID), url.PathEscape(id))
	return c.mutate(ctx, http.MethodPut, endpoint, values)
}

// Delete implements query.Backend.
func (c *Client) Delete(ctx context.Context, schemaID, id string) error {
	endpoint := fmt.Sprintf("%s/api/data/%s/%s", c.baseURL, url.PathEscape(schemaID), url.PathEscape(id))
	_, err := c.do(ctx, http.MethodDelete, endpoint, nil, nil)
	return err
}

// FetchSchema loads and validates a schema document from the backend.
func (c *Client) FetchSchema(ctx context.Context, schemaID string) (*schema.Schema, error) {
	endpoint := fmt.Sprintf("%s/api/schemas/%s", c.baseURL, url.PathEscape(schemaID))
	env, err := c.do(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return nil, err
	}
	return schema.Parse(env.Data)
}

func (c *Client) mutate(ctx context.Context, method, endpoint string, values map[string]any) (entity.Record, error) {
	body, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	headers := http.Header{
		"Idempotency-Key": []string{"mg_" + uuid.New().String()},
	}
	env, err := c.do(ctx, method, endpoint, body, headers)
	if err != nil {
		return nil, err
	}
	var rec entity.Record
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
	}
	return rec, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, headers http.Header) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 || !env.Success {
		msg := "backend error"
		if env.Error != nil {
			msg = env.Error.Message
		}
		return nil, fmt.Errorf("backend %s %s: %s (status %d)", method, endpoint, msg, resp.StatusCode)
	}
	return &env, nil
}
