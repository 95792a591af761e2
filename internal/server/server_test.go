package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthlearn/synthlearn/internal/generator"
	"github.com/synthlearn/synthlearn/internal/storage"
	"github.com/synthlearn/synthlearn/pkg/errors"
	"github.com/synthlearn/synthlearn/pkg/models"
)

func testServer() *Server {
	return NewServer(nil, generator.NewAssembler(nil, nil), nil, nil)
}

// memoryCache is an in-process DatasetCache for handler tests.
type memoryCache struct {
	entries map[string]*models.Dataset
	gets    int
	puts    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]*models.Dataset{}}
}

func (c *memoryCache) Get(_ context.Context, key string) (*models.Dataset, error) {
	c.gets++
	ds, ok := c.entries[key]
	if !ok {
		return nil, errors.NewStorageError(errors.CodeDataNotFound, "dataset not cached")
	}
	return ds, nil
}

func (c *memoryCache) Put(_ context.Context, key string, dataset *models.Dataset) error {
	c.puts++
	c.entries[key] = dataset
	return nil
}

func (c *memoryCache) Close() error { return nil }

var _ storage.DatasetCache = (*memoryCache)(nil)

func generateBody(t *testing.T, students int) *bytes.Buffer {
	t.Helper()
	seed := int64(42)
	params := models.GenerationParams{
		StudentCount: students,
		TimeRange: models.TimeRange{
			Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		PrivacyParams: models.PrivacyParams{EpsilonBudget: 1.0, DeltaPrivacy: 1e-5, KAnonymity: 3},
		QualityParams: models.QualityParams{NoiseLevelStd: 0.05},
		Seed:          &seed,
	}
	body, err := json.Marshal(params)
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestPersonasEndpoint(t *testing.T) {
	srv := testServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/personas", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Personas []models.Persona `json:"personas"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.AllPersonas(), body.Personas)
}

func TestGenerateEndpoint(t *testing.T) {
	srv := testServer()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", generateBody(t, 5))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var ds models.Dataset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ds))
	assert.Len(t, ds.Profiles, 5)
	assert.Equal(t, int64(42), ds.Seed)
	assert.True(t, ds.Reproducible)
}

func TestGenerateEndpointInvalidJSON(t *testing.T) {
	srv := testServer()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateEndpointInvalidParams(t *testing.T) {
	srv := testServer()

	params := map[string]interface{}{
		"student_count": -5,
		"time_range": map[string]string{
			"start": "2025-01-01T00:00:00Z",
			"end":   "2025-02-01T00:00:00Z",
		},
		"privacy_params": map[string]interface{}{
			"epsilon_budget": 1.0,
			"delta_privacy":  1e-5,
			"k_anonymity":    3,
		},
	}
	body, err := json.Marshal(params)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var respBody struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &respBody))
	assert.Equal(t, "INVALID_STUDENT_COUNT", respBody.Error.Code)
}

func TestGenerateEndpointMethodNotAllowed(t *testing.T) {
	srv := testServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/generate", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer()

	// Drive one generation so counters move.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", generateBody(t, 2))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "synthlearn_generations_total 1")
}

func TestGenerateEndpointCacheRoundTrip(t *testing.T) {
	cache := newMemoryCache()
	srv := NewServer(nil, generator.NewAssembler(nil, nil), cache, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", generateBody(t, 3))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	first := rec.Body.String()
	require.Equal(t, 1, cache.puts)

	// The repeated seeded request is served from the cache without a
	// second generation.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/generate", generateBody(t, 3))
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, first, rec.Body.String())
	assert.Equal(t, 1, cache.puts)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Contains(t, rec.Body.String(), "synthlearn_generations_total 1")
	assert.Contains(t, rec.Body.String(), "synthlearn_cache_hits_total 1")
}

func TestGenerateEndpointEntropySeedSkipsCache(t *testing.T) {
	cache := newMemoryCache()
	srv := NewServer(nil, generator.NewAssembler(nil, nil), cache, nil)

	params := models.GenerationParams{
		StudentCount: 2,
		TimeRange: models.TimeRange{
			Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		PrivacyParams: models.PrivacyParams{EpsilonBudget: 1.0, DeltaPrivacy: 1e-5, KAnonymity: 3},
		QualityParams: models.QualityParams{NoiseLevelStd: 0.05},
	}
	body, err := json.Marshal(params)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, cache.gets)
	assert.Zero(t, cache.puts)
}
