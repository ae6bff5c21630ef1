package api

import (
	"time"
)

// APIDataSource represents a JSON endpoint that serves raw isotherm rows
type APIDataSource struct {
	BaseURL string            `json:"base_url"`
	Headers map[string]string `json:"headers,omitempty"`

	// Authentication
	AuthMethod string `json:"auth_method"` // "none", "bearer", "api_key"
	AuthToken  string `json:"auth_token,omitempty"`

	// Data extraction
	DataPath string `json:"data_path"` // gjson path of the records array (e.g. "data.items")

	Timeout time.Duration `json:"timeout"`
}

// APIMetadata describes one fetch
type APIMetadata struct {
	URL          string        `json:"url"`
	StatusCode   int           `json:"status_code"`
	ContentType  string        `json:"content_type"`
	RecordsCount int           `json:"records_count"`
	ResponseTime time.Duration `json:"response_time"`
	FetchedAt    time.Time     `json:"fetched_at"`
}
