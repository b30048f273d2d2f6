package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/soundprediction/ontoscore"
	"github.com/soundprediction/ontoscore/pkg/config"
	"github.com/soundprediction/ontoscore/pkg/driver"
	"github.com/soundprediction/ontoscore/pkg/types"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	client, err := ontoscore.NewClient(driver.NewMemoryDriver(), nil, nil)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(func() { client.Close(context.Background()) })

	cfg := &config.Config{
		Server: config.ServerConfig{
			Host: "localhost",
			Port: 8080,
			Mode: "test",
		},
	}
	server := New(cfg, client)
	server.Setup()
	return server
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestNew(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{Host: "localhost", Port: 8080, Mode: "test"},
	}
	server := New(cfg, nil)
	if server == nil {
		t.Fatal("expected non-nil server")
	}
	if server.config != cfg {
		t.Error("expected config to be set")
	}
}

func TestSetup(t *testing.T) {
	server := testServer(t)
	if server.router == nil {
		t.Error("expected router to be initialized")
	}
	if server.server == nil {
		t.Error("expected http.Server to be initialized")
	}
	if server.server.Addr != "localhost:8080" {
		t.Errorf("expected addr localhost:8080, got %s", server.server.Addr)
	}
}

func TestHealthEndpoints(t *testing.T) {
	server := testServer(t)

	for _, path := range []string{"/health", "/live", "/ready", "/health/detailed"} {
		w := doJSON(t, server, http.MethodGet, path, nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", path, w.Code)
		}
	}
}

func TestRequestIDHeader(t *testing.T) {
	server := testServer(t)

	w := doJSON(t, server, http.MethodGet, "/health", nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated X-Request-ID header")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "req-42" {
		t.Errorf("expected X-Request-ID to be echoed, got %q", got)
	}
}

func TestObjectLifecycle(t *testing.T) {
	server := testServer(t)

	w := doJSON(t, server, http.MethodPost, "/api/v1/objects", map[string]interface{}{
		"type":         "company",
		"identity_key": "company:acme",
		"confidence":   0.9,
		"properties":   map[string]interface{}{"name": "Acme"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("upsert: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		ObjectID string `json:"object_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.ObjectID == "" {
		t.Fatal("expected an object id")
	}

	w = doJSON(t, server, http.MethodGet, "/api/v1/objects/"+created.ObjectID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("get: expected 200, got %d", w.Code)
	}

	w = doJSON(t, server, http.MethodGet, "/api/v1/objects/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing object: expected 404, got %d", w.Code)
	}
}

func TestUpsertObjectValidation(t *testing.T) {
	server := testServer(t)

	// Missing identity_key fails binding.
	w := doJSON(t, server, http.MethodPost, "/api/v1/objects", map[string]interface{}{
		"type":       "company",
		"confidence": 0.9,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}

	// Out-of-range confidence fails validation.
	w = doJSON(t, server, http.MethodPost, "/api/v1/objects", map[string]interface{}{
		"type":         "company",
		"identity_key": "company:acme",
		"confidence":   1.5,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestLinkEndpoints(t *testing.T) {
	server := testServer(t)

	createObject := func(key string) string {
		w := doJSON(t, server, http.MethodPost, "/api/v1/objects", map[string]interface{}{
			"type":         "company",
			"identity_key": key,
			"confidence":   0.9,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("upsert %s: got %d", key, w.Code)
		}
		var created struct {
			ObjectID string `json:"object_id"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return created.ObjectID
	}
	a := createObject("company:a")
	b := createObject("company:b")

	w := doJSON(t, server, http.MethodPost, "/api/v1/links", map[string]interface{}{
		"type":       "owns_shares_in",
		"source_id":  a,
		"target_id":  b,
		"strength":   0.6,
		"confidence": 0.9,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create link: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	// Dangling endpoint maps to 400.
	w = doJSON(t, server, http.MethodPost, "/api/v1/links", map[string]interface{}{
		"type":       "owns_shares_in",
		"source_id":  a,
		"target_id":  "ghost",
		"strength":   0.6,
		"confidence": 0.9,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("dangling endpoint: expected 400, got %d", w.Code)
	}

	w = doJSON(t, server, http.MethodGet, fmt.Sprintf("/api/v1/objects/%s/links", a), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get links: expected 200, got %d", w.Code)
	}
	var links struct {
		Links []*types.Link `json:"links"`
		Count int           `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &links); err != nil {
		t.Fatalf("decode links: %v", err)
	}
	if links.Count != 1 {
		t.Errorf("expected 1 link, got %d", links.Count)
	}

	w = doJSON(t, server, http.MethodGet, fmt.Sprintf("/api/v1/objects/%s/neighborhood?hops=2", a), nil)
	if w.Code != http.StatusOK {
		t.Errorf("neighborhood: expected 200, got %d", w.Code)
	}

	// Close the link, then verify it no longer shows up.
	w = doJSON(t, server, http.MethodDelete, "/api/v1/links/"+links.Links[0].ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("close link: expected 200, got %d", w.Code)
	}
}

func TestScoreEndpoint(t *testing.T) {
	server := testServer(t)

	w := doJSON(t, server, http.MethodPost, "/api/v1/objects", map[string]interface{}{
		"type":         "company",
		"identity_key": "company:acme",
		"confidence":   1.0,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("upsert: got %d", w.Code)
	}
	var created struct {
		ObjectID string `json:"object_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w = doJSON(t, server, http.MethodGet, fmt.Sprintf("/api/v1/companies/%s/score", created.ObjectID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("score: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var result types.RiskScoreResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode score: %v", err)
	}
	if result.RiskLevel != types.RiskLevelLow {
		t.Errorf("expected LOW for isolated company, got %s", result.RiskLevel)
	}
	if len(result.Components) != 5 {
		t.Errorf("expected 5 components, got %d", len(result.Components))
	}

	w = doJSON(t, server, http.MethodGet, "/api/v1/companies/missing/score", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing company: expected 404, got %d", w.Code)
	}

	w = doJSON(t, server, http.MethodGet,
		fmt.Sprintf("/api/v1/companies/%s/score?as_of=not-a-time", created.ObjectID), nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad as_of: expected 400, got %d", w.Code)
	}
}

func TestBatchScoreEndpoint(t *testing.T) {
	server := testServer(t)

	w := doJSON(t, server, http.MethodPost, "/api/v1/objects", map[string]interface{}{
		"type":         "company",
		"identity_key": "company:acme",
		"confidence":   1.0,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("upsert: got %d", w.Code)
	}
	var created struct {
		ObjectID string `json:"object_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w = doJSON(t, server, http.MethodPost, "/api/v1/scores/batch", map[string]interface{}{
		"company_ids": []string{created.ObjectID, "ghost"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("batch: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var batch types.BatchScoreResults
	if err := json.Unmarshal(w.Body.Bytes(), &batch); err != nil {
		t.Fatalf("decode batch: %v", err)
	}
	if batch.SuccessCount != 1 || batch.FailureCount != 1 {
		t.Errorf("expected 1 success and 1 failure, got %d/%d",
			batch.SuccessCount, batch.FailureCount)
	}

	// Neither ids nor all: rejected.
	w = doJSON(t, server, http.MethodPost, "/api/v1/scores/batch", map[string]interface{}{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty batch request: expected 400, got %d", w.Code)
	}
}

func TestIngestEndpoint(t *testing.T) {
	server := testServer(t)

	w := doJSON(t, server, http.MethodPost, "/api/v1/ingest/batch", map[string]interface{}{
		"objects": []map[string]interface{}{
			{"type": "company", "identity_key": "company:acme", "confidence": 0.9},
			{"type": "fund", "identity_key": "fund:alpha", "confidence": 0.8},
		},
		"links": []map[string]interface{}{
			{"type": "owns_cb_in", "source_key": "fund:alpha", "target_key": "company:acme",
				"strength": 0.6, "confidence": 0.9},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("ingest: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// A batch with a bad record reports 207 with attributed errors.
	w = doJSON(t, server, http.MethodPost, "/api/v1/ingest/batch", map[string]interface{}{
		"links": []map[string]interface{}{
			{"type": "owns_cb_in", "source_key": "fund:ghost", "target_key": "company:acme",
				"strength": 0.6, "confidence": 0.9},
		},
	})
	if w.Code != http.StatusMultiStatus {
		t.Errorf("partial ingest: expected 207, got %d", w.Code)
	}

	// An empty batch is rejected outright.
	w = doJSON(t, server, http.MethodPost, "/api/v1/ingest/batch", map[string]interface{}{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty batch: expected 400, got %d", w.Code)
	}
}
