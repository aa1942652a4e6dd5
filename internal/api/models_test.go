package api

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFlexibleIDUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"hex string", `"664c9a087b21446730da802d"`, "664c9a087b21446730da802d", false},
		{"number", `123456`, "123456", false},
		{"null-ish object", `{}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id FlexibleID
			err := json.Unmarshal([]byte(tt.input), &id)

			if (err != nil) != tt.wantErr {
				t.Errorf("Unmarshal(%s) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && id.String() != tt.want {
				t.Errorf("Unmarshal(%s) = %q, want %q", tt.input, id, tt.want)
			}
		})
	}
}

func TestAPITimeUnmarshal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"rfc3339 with millis", `"2026-05-22T17:06:54.875Z"`, time.Date(2026, 5, 22, 17, 6, 54, 875000000, time.UTC)},
		{"rfc3339", `"2026-05-22T17:06:54Z"`, time.Date(2026, 5, 22, 17, 6, 54, 0, time.UTC)},
		{"offset without colon", `"2026-05-22T17:06:54.875+0000"`, time.Date(2026, 5, 22, 17, 6, 54, 875000000, time.UTC)},
		{"empty string is zero time", `""`, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts APITime
			if err := json.Unmarshal([]byte(tt.input), &ts); err != nil {
				t.Fatalf("Unmarshal(%s) error: %v", tt.input, err)
			}
			if !ts.Time.Equal(tt.want) {
				t.Errorf("Unmarshal(%s) = %v, want %v", tt.input, ts.Time, tt.want)
			}
		})
	}
}

func TestDeployPageURL(t *testing.T) {
	d := Deploy{AdminURL: "https://app.example.com/d/1", DeployURL: "https://d1.example.com"}
	if got := d.PageURL(); got != d.AdminURL {
		t.Errorf("PageURL() = %q, want admin URL", got)
	}

	d.AdminURL = ""
	if got := d.PageURL(); got != d.DeployURL {
		t.Errorf("PageURL() = %q, want deploy URL fallback", got)
	}
}
