// Package profileapi is the identity.Store adapter for the LoveBug profile
// service's REST API. The profile row carries the is_robot_verified column;
// this client reads it and flips it to true, never back.
package profileapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lovebughq/ladybug/lib/identity"
)

var ErrNoBaseURL = errors.New("profileapi: base URL is required")

type profile struct {
	IsRobotVerified bool `json:"is_robot_verified"`
}

type Client struct {
	baseURL string
	token   string
	hc      *http.Client
}

// New builds a client against the profile service. token is the service
// role bearer token; it is sent on every request.
func New(baseURL, token string) (*Client, error) {
	if baseURL == "" {
		return nil, ErrNoBaseURL
	}

	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("profileapi: can't parse base URL %q: %w", baseURL, err)
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		hc:      &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", identity.ErrUnavailable, err)
	}

	return resp, nil
}

func (c *Client) VerifiedFlag(ctx context.Context, userID string) (bool, error) {
	u := fmt.Sprintf("%s/profiles/%s", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %w", identity.ErrUnavailable, err)
	}

	resp, err := c.do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var p profile
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			return false, fmt.Errorf("%w: can't decode profile: %w", identity.ErrUnavailable, err)
		}
		return p.IsRobotVerified, nil
	case http.StatusNotFound:
		// the profile row is created lazily; no row means unverified
		return false, nil
	default:
		return false, fmt.Errorf("%w: profile service returned %d", identity.ErrUnavailable, resp.StatusCode)
	}
}

func (c *Client) SetVerifiedFlag(ctx context.Context, userID string) error {
	body, err := json.Marshal(profile{IsRobotVerified: true})
	if err != nil {
		return fmt.Errorf("%w: %w", identity.ErrUnavailable, err)
	}

	u := fmt.Sprintf("%s/profiles/%s", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", identity.ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	default:
		return fmt.Errorf("%w: profile service returned %d", identity.ErrUnavailable, resp.StatusCode)
	}
}
