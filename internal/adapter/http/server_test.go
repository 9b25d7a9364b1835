package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	httpadapter "github.com/couchcryptid/civic-data-etl/internal/adapter/http"
	"github.com/couchcryptid/civic-data-etl/internal/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockStore struct {
	files   map[string][]byte
	listErr error
}

func (m *mockStore) List() ([]output.Artifact, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []output.Artifact
	for _, name := range []string{"csb_2025.json", "trends.json"} {
		if data, ok := m.files[name]; ok {
			out = append(out, output.Artifact{Name: name, Size: int64(len(data))})
		}
	}
	return out, nil
}

func (m *mockStore) Open(name string) ([]byte, error) {
	data, ok := m.files[name]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", name, os.ErrNotExist)
	}
	if data == nil {
		return nil, errors.New("disk on fire")
	}
	return data, nil
}

func newTestServer(readyErr error, store *mockStore) *httpadapter.Server {
	if store == nil {
		store = &mockStore{}
	}
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func serve(srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := serve(newTestServer(nil, nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := serve(newTestServer(nil, nil), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := serve(newTestServer(errors.New("no successful run yet"), nil), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(newTestServer(nil, nil), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestDataListsArtifacts(t *testing.T) {
	store := &mockStore{files: map[string][]byte{
		"csb_2025.json": []byte(`{"year":2025}`),
		"trends.json":   []byte(`{}`),
	}}
	rec := serve(newTestServer(nil, store), "/data/")

	require.Equal(t, http.StatusOK, rec.Code)
	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 2)
	assert.Equal(t, "csb_2025.json", body[0]["name"])
	assert.InDelta(t, 13, body[0]["size"], 0)
}

func TestDataListError(t *testing.T) {
	rec := serve(newTestServer(nil, &mockStore{listErr: errors.New("boom")}), "/data/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDataServesArtifact(t *testing.T) {
	store := &mockStore{files: map[string][]byte{"csb_2025.json": []byte(`{"year":2025}`)}}
	rec := serve(newTestServer(nil, store), "/data/csb_2025.json")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, `{"year":2025}`, rec.Body.String())
}

func TestDataUnknownArtifact(t *testing.T) {
	rec := serve(newTestServer(nil, &mockStore{}), "/data/csb_1999.json")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "csb_1999.json")
}

func TestDataReadFailure(t *testing.T) {
	store := &mockStore{files: map[string][]byte{"trends.json": nil}}
	rec := serve(newTestServer(nil, store), "/data/trends.json")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
