package api

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"isofit/adapters/excel"
	"isofit/internal/errors"

	"github.com/tidwall/gjson"
)

const maxResponseBytes = 32 << 20

// APIReader handles fetching raw rows from a REST endpoint
type APIReader struct {
	config     *APIDataSource
	httpClient *http.Client
}

// NewAPIReader creates a new API reader for a data source
func NewAPIReader(config *APIDataSource) *APIReader {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &APIReader{
		config: config,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchTable retrieves the records at the configured data path and returns
// them as a table. Column order follows the keys of the first record; keys
// first seen in later records are appended. Line numbers of the table are
// 1-based record indexes.
func (r *APIReader) FetchTable(ctx context.Context) (*excel.Table, *APIMetadata, error) {
	startTime := time.Now()
	log.Printf("[APIReader] Fetching %s", r.config.BaseURL)

	req, err := r.buildRequest(ctx, r.config.BaseURL)
	if err != nil {
		return nil, nil, errors.Wrap(errors.InvalidInput(err.Error()), "failed to build request")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, nil, errors.ExternalServiceError(r.config.BaseURL, err)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	resp.Body.Close()
	if err != nil {
		return nil, nil, errors.ExternalServiceError(r.config.BaseURL, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, nil, errors.ExternalServiceError(r.config.BaseURL,
			fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}

	table, err := r.parseResponse(body)
	if err != nil {
		return nil, nil, err
	}

	meta := &APIMetadata{
		URL:          r.config.BaseURL,
		StatusCode:   resp.StatusCode,
		ContentType:  resp.Header.Get("Content-Type"),
		RecordsCount: len(table.Rows),
		ResponseTime: time.Since(startTime),
		FetchedAt:    startTime,
	}
	log.Printf("[APIReader] Fetched %d records in %.2fms", meta.RecordsCount, float64(meta.ResponseTime.Nanoseconds())/1e6)
	return table, meta, nil
}

// buildRequest creates an HTTP request with authentication
func (r *APIReader) buildRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	for k, v := range r.config.Headers {
		req.Header.Set(k, v)
	}

	switch r.config.AuthMethod {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+r.config.AuthToken)
	case "api_key":
		req.Header.Set("X-API-Key", r.config.AuthToken)
	}

	return req, nil
}

// parseResponse extracts records from the JSON body
func (r *APIReader) parseResponse(body []byte) (*excel.Table, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.InvalidInput("response is not valid JSON")
	}

	dataPath := r.config.DataPath
	var data gjson.Result
	if dataPath == "" || dataPath == "." {
		data = gjson.ParseBytes(body)
	} else {
		data = gjson.GetBytes(body, dataPath)
	}
	if !data.Exists() {
		return nil, errors.InvalidInputf("data path '%s' not found in response", dataPath)
	}
	if !data.IsArray() {
		return nil, errors.InvalidInputf("data path '%s' is not an array", dataPath)
	}

	table := &excel.Table{}
	seen := make(map[string]bool)
	var parseErr error
	index := 0
	data.ForEach(func(_, record gjson.Result) bool {
		index++
		if !record.IsObject() {
			parseErr = errors.InvalidInputf("record %d is not an object", index)
			return false
		}
		row := make(excel.RawRowData)
		record.ForEach(func(key, value gjson.Result) bool {
			name := key.String()
			if !seen[name] {
				seen[name] = true
				table.Headers = append(table.Headers, name)
			}
			row[name] = cellText(value)
			return true
		})
		table.Rows = append(table.Rows, row)
		table.Lines = append(table.Lines, index)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if len(table.Rows) == 0 {
		return nil, errors.InvalidInputf("data path '%s' holds no records", dataPath)
	}
	return table, nil
}

// cellText keeps numbers in their JSON spelling so no precision is lost
func cellText(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.Number:
		return v.Raw
	default:
		return v.String()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
