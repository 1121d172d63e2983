// Package connecteam implements the workforce-management target client:
// status-paged identity listing and one-at-a-time user creation.
package connecteam

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"employee-sync/internal/config"
	"employee-sync/internal/domain"
	"employee-sync/internal/httpx"
)

const (
	pageLimit   = 500
	callTimeout = 30 * time.Second
)

type Client struct {
	cfg   config.TargetConfig
	http  *http.Client
	retry httpx.RetryConfig
}

func New(cfg config.TargetConfig) *Client {
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: 5 * time.Minute,
		},
		retry: httpx.DefaultRetryConfig(),
	}
}

// Close releases pooled connections. Safe to call after a failed run.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

type usersResponse struct {
	Data struct {
		Users []struct {
			CustomFields []struct {
				CustomFieldID int64           `json:"customFieldId"`
				Value         json.RawMessage `json:"value"`
			} `json:"customFields"`
		} `json:"users"`
	} `json:"data"`
	Paging struct {
		Offset *int `json:"offset"`
	} `json:"paging"`
}

func (c *Client) usersPage(ctx context.Context, userStatus string, offset int) (*usersResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	var out usersResponse
	err := httpx.DoJSON(
		ctx,
		c.http,
		func(ctx context.Context) (*http.Request, error) {
			r, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.UsersBaseURL, nil)
			if err != nil {
				return nil, err
			}
			q := r.URL.Query()
			q.Set("limit", strconv.Itoa(pageLimit))
			q.Set("offset", strconv.Itoa(offset))
			q.Set("userStatus", userStatus)
			r.URL.RawQuery = q.Encode()
			r.Header.Set("X-API-KEY", c.cfg.APIKey)
			r.Header.Set("Accept", "application/json")
			return r, nil
		},
		&out,
		c.retry,
	)
	if err != nil {
		return nil, fmt.Errorf("connecteam: list users status=%s offset=%d failed: %w", userStatus, offset, err)
	}
	return &out, nil
}

// idsByStatus pages through every user of one lifecycle status and collects
// the dedup-key custom field where present. The loop terminates when a page
// comes back empty or the reported next offset is missing or does not
// advance, so a misbehaving listing cannot spin forever.
func (c *Client) idsByStatus(ctx context.Context, userStatus string) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	offset := 0

	for {
		page, err := c.usersPage(ctx, userStatus, offset)
		if err != nil {
			return nil, err
		}
		if len(page.Data.Users) == 0 {
			break
		}

		for _, u := range page.Data.Users {
			for _, cf := range u.CustomFields {
				if cf.CustomFieldID != cfDedupKey {
					continue
				}
				if v := rawToString(cf.Value); v != "" {
					ids[v] = struct{}{}
				}
			}
		}

		next := page.Paging.Offset
		if next == nil || *next <= offset {
			break
		}
		offset = *next
	}

	return ids, nil
}

// ExistingIDs returns the dedup keys of every identity already present in
// the target system, across the active and archived statuses.
func (c *Client) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	all := make(map[string]struct{})
	for _, status := range []string{"active", "archived"} {
		ids, err := c.idsByStatus(ctx, status)
		if err != nil {
			return nil, err
		}
		for id := range ids {
			all[id] = struct{}{}
		}
	}
	return all, nil
}

// CreateUser submits one creation request. The transport body is a list of
// one element; employees are never batched. Failures are captured in the
// result rather than returned, so the caller's loop is never aborted by a
// single employee.
func (c *Client) CreateUser(ctx context.Context, m domain.MembershipRecord, d domain.MemberDetail) domain.CreationResult {
	result := domain.CreationResult{
		EmployeeID: d.EmployeeID,
		Name:       d.FullName(),
	}

	payload := BuildUserPayload(m, d)
	b, err := json.Marshal([]UserPayload{payload})
	if err != nil {
		result.Error = err.Error()
		return result
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, body, err := httpx.DoWithRetry(
		callCtx,
		c.http,
		func(ctx context.Context) (*http.Request, error) {
			r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.UsersBaseURL, bytes.NewReader(b))
			if err != nil {
				return nil, err
			}
			q := r.URL.Query()
			q.Set("sendActivation", "false")
			r.URL.RawQuery = q.Encode()
			r.Header.Set("X-API-KEY", c.cfg.APIKey)
			r.Header.Set("Content-Type", "application/json")
			r.Header.Set("Accept", "application/json")
			return r, nil
		},
		c.retry,
	)
	if err != nil {
		result.Error = err.Error()
		var herr *httpx.HTTPError
		if errors.As(err, &herr) {
			if json.Valid(herr.Body) {
				result.Detail = json.RawMessage(herr.Body)
			} else {
				detail, _ := json.Marshal(string(herr.Body))
				result.Detail = detail
			}
		}
		return result
	}

	result.Success = true
	result.Response = json.RawMessage(body)
	return result
}

func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
