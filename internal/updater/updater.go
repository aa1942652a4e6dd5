// Package updater checks the project's release feed for newer versions.
// The tray only surfaces the result as a menu item that opens the release
// page in the browser; no self-replacement happens here.
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/deploybar/deploybar/internal/buildinfo"
)

const defaultReleasesURL = "https://api.github.com/repos/deploybar/deploybar/releases/latest"

// Release is the subset of the GitHub release payload we read.
type Release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
	Name    string `json:"name"`
}

// Result describes the outcome of an update check.
type Result struct {
	Available      bool
	CurrentVersion string
	LatestVersion  string
	ReleaseURL     string
}

// Checker performs update checks against a releases endpoint.
type Checker struct {
	releasesURL string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewChecker creates a checker. An empty releasesURL selects the project
// default.
func NewChecker(releasesURL string, logger *zap.Logger) *Checker {
	if releasesURL == "" {
		releasesURL = defaultReleasesURL
	}
	return &Checker{
		releasesURL: releasesURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		logger:      logger,
	}
}

// Check queries the release feed and compares against the built-in version.
func (c *Checker) Check(ctx context.Context) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.releasesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "deploybar/"+buildinfo.Version)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch releases: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// No releases published yet
		return &Result{Available: false, CurrentVersion: buildinfo.Version}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release feed returned status %d", resp.StatusCode)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("failed to decode release: %w", err)
	}

	latestStr := strings.TrimPrefix(release.TagName, "v")
	result := &Result{
		CurrentVersion: buildinfo.Version,
		LatestVersion:  latestStr,
		ReleaseURL:     release.HTMLURL,
	}

	latest, err := ParseVersion(latestStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse latest version %q: %w", latestStr, err)
	}

	current, err := ParseVersion(buildinfo.Version)
	if err != nil {
		// Dev builds have no comparable version; treat any release as newer.
		result.Available = true
		c.logger.Debug("Current version not semver, assuming update available",
			zap.String("current", buildinfo.Version))
		return result, nil
	}

	result.Available = current.Compare(latest) < 0

	c.logger.Info("Update check completed",
		zap.String("current", result.CurrentVersion),
		zap.String("latest", result.LatestVersion),
		zap.Bool("available", result.Available))

	return result, nil
}
