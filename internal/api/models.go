package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// FlexibleID handles both string and number IDs from the API.
// Deploy IDs arrive as hex strings while some legacy site records
// still carry numeric IDs; both are normalized to string.
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler for FlexibleID
func (f *FlexibleID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = FlexibleID(s)
		return nil
	}

	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = FlexibleID(strconv.FormatInt(n, 10))
		return nil
	}

	return fmt.Errorf("FlexibleID: cannot unmarshal %s", string(b))
}

// MarshalJSON implements json.Marshaler for FlexibleID
func (f FlexibleID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(f))
}

// String returns string representation
func (f FlexibleID) String() string {
	return string(f)
}

// APITime is a custom time type that tolerates the timestamp variants the
// API returns (RFC3339 with and without fractional seconds, and offsets
// written without a colon).
type APITime struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler for APITime
func (t *APITime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000-0700",
		"2006-01-02T15:04:05-0700",
	}

	var parseErr error
	for _, format := range formats {
		parsed, err := time.Parse(format, s)
		if err == nil {
			t.Time = parsed
			return nil
		}
		parseErr = err
	}

	return parseErr
}

// MarshalJSON implements json.Marshaler for APITime
func (t APITime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// User represents the authenticated account
type User struct {
	ID       FlexibleID `json:"id"`
	Email    string     `json:"email"`
	FullName string     `json:"full_name"`
}

// Site represents a hosted project
type Site struct {
	ID        FlexibleID `json:"id"`
	Name      string     `json:"name"`
	URL       string     `json:"url"`
	AdminURL  string     `json:"admin_url"`
	UpdatedAt APITime    `json:"updated_at"`
}

// DeployState is the lifecycle state of a deploy as reported by the API.
type DeployState string

const (
	DeployStateNew        DeployState = "new"
	DeployStateEnqueued   DeployState = "enqueued"
	DeployStatePreparing  DeployState = "preparing"
	DeployStateBuilding   DeployState = "building"
	DeployStateUploading  DeployState = "uploading"
	DeployStateProcessing DeployState = "processing"
	DeployStateReady      DeployState = "ready"
	DeployStateCurrent    DeployState = "current"
	DeployStateError      DeployState = "error"
)

// Deploy represents one build/publish attempt of a site
type Deploy struct {
	ID           FlexibleID  `json:"id"`
	SiteID       FlexibleID  `json:"site_id"`
	State        DeployState `json:"state"`
	Branch       string      `json:"branch"`
	Context      string      `json:"context"` // "production", "deploy-preview", ...
	CommitRef    string      `json:"commit_ref"`
	ErrorMessage string      `json:"error_message,omitempty"`
	DeployTime   int64       `json:"deploy_time"` // seconds
	AdminURL     string      `json:"admin_url"`
	DeployURL    string      `json:"deploy_ssl_url"`
	CreatedAt    APITime     `json:"created_at"`
	PublishedAt  *APITime    `json:"published_at,omitempty"`
}

// PageURL returns the web page describing this deploy, preferring the
// admin detail page over the raw deploy URL.
func (d Deploy) PageURL() string {
	if d.AdminURL != "" {
		return d.AdminURL
	}
	return d.DeployURL
}

// CreateBuildRequest represents request to trigger a new build
type CreateBuildRequest struct {
	ClearCache bool `json:"clear_cache,omitempty"`
}

// Build represents a triggered build
type Build struct {
	ID        FlexibleID `json:"id"`
	DeployID  FlexibleID `json:"deploy_id"`
	Done      bool       `json:"done"`
	Error     string     `json:"error,omitempty"`
	CreatedAt APITime    `json:"created_at"`
}
