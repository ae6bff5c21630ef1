package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"isofit/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer lab-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func source(url, path string) *APIDataSource {
	return &APIDataSource{BaseURL: url, DataPath: path, AuthMethod: "bearer", AuthToken: "lab-token", Timeout: 5 * time.Second}
}

func TestFetchTable(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"run": 7, "data": {"items": [
		{"initial_conc(mM)": 0.1, "initial_peak_area": 1234567, "after_peak_area": 1234},
		{"initial_conc(mM)": 0.2, "initial_peak_area": 1345678, "after_peak_area": 1567, "note": "repeat"}
	]}}`)

	table, meta, err := NewAPIReader(source(srv.URL, "data.items")).FetchTable(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"initial_conc(mM)", "initial_peak_area", "after_peak_area", "note"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "0.1", table.Rows[0]["initial_conc(mM)"])
	assert.Equal(t, "1345678", table.Rows[1]["initial_peak_area"])
	assert.Equal(t, "repeat", table.Rows[1]["note"])
	assert.Equal(t, 2, table.Line(1))
	assert.Equal(t, 2, meta.RecordsCount)
	assert.Equal(t, "application/json", meta.ContentType)
}

func TestFetchTable_Errors(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
		path   string
		code   string
	}{
		"missing path":   {http.StatusOK, `{"data": []}`, "items", errors.CodeInvalidInput},
		"not an array":   {http.StatusOK, `{"data": {"a": 1}}`, "data", errors.CodeInvalidInput},
		"empty array":    {http.StatusOK, `{"data": []}`, "data", errors.CodeInvalidInput},
		"scalar records": {http.StatusOK, `{"data": [1, 2]}`, "data", errors.CodeInvalidInput},
		"invalid json":   {http.StatusOK, `{"data": [`, "data", errors.CodeInvalidInput},
		"server error":   {http.StatusInternalServerError, `boom`, "data", errors.CodeExternalService},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := serve(t, tc.status, tc.body)
			_, _, err := NewAPIReader(source(srv.URL, tc.path)).FetchTable(context.Background())
			require.Error(t, err)
			assert.Equal(t, tc.code, errors.GetCode(err))
		})
	}
}

func TestFetchTable_RootArray(t *testing.T) {
	srv := serve(t, http.StatusOK, `[{"ce": 1, "qe": null}]`)

	table, _, err := NewAPIReader(source(srv.URL, "")).FetchTable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", table.Rows[0]["qe"])
}
