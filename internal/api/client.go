package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const (
	defaultTimeout = 30 * time.Second
	defaultRetries = 3
)

// Client represents the deploy-hosting API client
type Client struct {
	baseURL     string
	token       string
	httpClient  *http.Client
	logger      *zap.Logger
	currentUser *User // Cached current user info
}

// NewClient creates a new API client
func NewClient(baseURL, token string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
}

// BaseURL returns the configured API endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetCurrentUser returns the authenticated account info (cached)
func (c *Client) GetCurrentUser(ctx context.Context) (*User, error) {
	if c.currentUser != nil {
		return c.currentUser, nil
	}

	var user User
	err := c.doRequest(ctx, "GET", "/user", nil, &user)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	c.currentUser = &user

	c.logger.Info("Current user identified",
		zap.String("id", user.ID.String()),
		zap.String("email", user.Email))

	return &user, nil
}

// ListSites lists all sites the account can access
func (c *Client) ListSites(ctx context.Context) ([]Site, error) {
	var sites []Site
	err := c.doRequest(ctx, "GET", "/sites", nil, &sites)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}

	c.logger.Debug("Sites listed", zap.Int("count", len(sites)))

	return sites, nil
}

// ListDeploys lists deploys for a site, most recent first
func (c *Client) ListDeploys(ctx context.Context, siteID string) ([]Deploy, error) {
	path := fmt.Sprintf("/sites/%s/deploys", url.PathEscape(siteID))

	var deploys []Deploy
	err := c.doRequest(ctx, "GET", path, nil, &deploys)
	if err != nil {
		return nil, fmt.Errorf("failed to list deploys for site %s: %w", siteID, err)
	}

	c.logger.Debug("Deploys listed",
		zap.String("site_id", siteID),
		zap.Int("count", len(deploys)))

	return deploys, nil
}

// CreateBuild triggers a new build for a site
func (c *Client) CreateBuild(ctx context.Context, siteID string) (*Build, error) {
	path := fmt.Sprintf("/sites/%s/builds", url.PathEscape(siteID))

	var build Build
	err := c.doRequest(ctx, "POST", path, CreateBuildRequest{}, &build)
	if err != nil {
		return nil, fmt.Errorf("failed to create build for site %s: %w", siteID, err)
	}

	c.logger.Info("Build triggered",
		zap.String("site_id", siteID),
		zap.String("build_id", build.ID.String()))

	return &build, nil
}

// doRequest performs HTTP request with authentication and retry
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var payload []byte
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = jsonData
	}

	reqURL := c.baseURL + path

	var lastErr error
	for attempt := 1; attempt <= defaultRetries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		err := c.doRequestOnce(ctx, method, reqURL, bodyReader, result)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
		c.logger.Warn("Request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", defaultRetries),
			zap.Error(err))

		if attempt < defaultRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second * time.Duration(attempt)):
			}
		}
	}

	return fmt.Errorf("request failed after %d attempts: %w", defaultRetries, lastErr)
}

// doRequestOnce performs a single HTTP request
func (c *Client) doRequestOnce(ctx context.Context, method, reqURL string, body io.Reader, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}
