// Copyright (c) 2026 Marta Villanueva <marta@insightlab.dev>.
// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/apex/log"
	"github.com/google/uuid"
	cleanhttp "github.com/hashicorp/go-cleanhttp"
)

// Client talks to the insights backend. One instance per process; it is
// safe for concurrent use.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient builds a Client for the given host. The host may be bare
// ("insights.example.com") or carry a scheme.
func NewClient(host, token string) (*Client, error) {
	if host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}

	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid host %q: %w", host, err)
	}

	return &Client{
		base:  base,
		token: token,
		http:  cleanhttp.DefaultPooledClient(),
	}, nil
}

// BaseURL returns the resolved backend base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// ListInsightGroups fetches all insight groups for an app. The server
// decides the order of the response; callers sort.
func (c *Client) ListInsightGroups(ctx context.Context, appID uuid.UUID) ([]InsightGroup, error) {
	var groups []InsightGroup
	path := fmt.Sprintf("apps/%s/insightgroups", appID)
	if err := c.get(ctx, path, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// CreateInsightGroup creates a new, empty group titled title.
func (c *Client) CreateInsightGroup(ctx context.Context, appID uuid.UUID, title string) (*InsightGroup, error) {
	var group InsightGroup
	path := fmt.Sprintf("apps/%s/insightgroups", appID)
	if err := c.post(ctx, path, groupCreateBody{Title: title}, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

// UpdateInsightGroup replaces the group's attributes server-side and returns
// the updated group.
func (c *Client) UpdateInsightGroup(ctx context.Context, appID uuid.UUID, group InsightGroup) (*InsightGroup, error) {
	var updated InsightGroup
	path := fmt.Sprintf("apps/%s/insightgroups/%s", appID, group.ID)
	if err := c.patch(ctx, path, group, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteInsightGroup deletes a group and returns the deleted entity.
func (c *Client) DeleteInsightGroup(ctx context.Context, appID, groupID uuid.UUID) (*InsightGroup, error) {
	var deleted InsightGroup
	path := fmt.Sprintf("apps/%s/insightgroups/%s", appID, groupID)
	if err := c.delete(ctx, path, &deleted); err != nil {
		return nil, err
	}
	return &deleted, nil
}

// CreateInsight creates an insight in a group. The backend calculates the
// new insight immediately and returns the result.
func (c *Client) CreateInsight(ctx context.Context, appID, groupID uuid.UUID, def InsightDefinition) (*CalculationResult, error) {
	var result CalculationResult
	path := fmt.Sprintf("apps/%s/insightgroups/%s/insights", appID, groupID)
	if err := c.post(ctx, path, def, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateInsight replaces an insight's definition and returns the
// recalculated result.
func (c *Client) UpdateInsight(ctx context.Context, appID, groupID, insightID uuid.UUID, def InsightDefinition) (*CalculationResult, error) {
	var result CalculationResult
	path := fmt.Sprintf("apps/%s/insightgroups/%s/insights/%s", appID, groupID, insightID)
	if err := c.patch(ctx, path, def, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteInsight deletes an insight. The backend answers with a status
// string.
func (c *Client) DeleteInsight(ctx context.Context, appID, groupID, insightID uuid.UUID) (string, error) {
	var result string
	path := fmt.Sprintf("apps/%s/insightgroups/%s/insights/%s", appID, groupID, insightID)
	if err := c.delete(ctx, path, &result); err != nil {
		return "", err
	}
	return result, nil
}

// Apps lists the apps visible to the token.
func (c *Client) Apps(ctx context.Context) ([]App, error) {
	var apps []App
	if err := c.get(ctx, "apps", &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, body, out)
}

func (c *Client) delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, out)
}

// do performs one round trip and decodes the response into out. Every
// failure comes back as a *TransferError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	u := c.base.JoinPath("api", "v1").JoinPath(strings.Split(path, "/")...)

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &TransferError{Kind: KindDecode, Path: path, Message: "failed to encode request body", Err: err}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return &TransferError{Kind: KindTransport, Path: path, Message: err.Error(), Err: err}
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debugf("%s %s", method, u)

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransferError{Kind: KindTransport, Path: path, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &TransferError{
			Kind:    kindForStatus(resp.StatusCode),
			Status:  resp.StatusCode,
			Path:    path,
			Message: strings.TrimSpace(string(msg)),
		}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransferError{Kind: KindDecode, Path: path, Message: "failed to decode response", Err: err}
	}

	return nil
}
