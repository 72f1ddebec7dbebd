package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lazypower/instinct/internal/config"
	"github.com/lazypower/instinct/internal/engine"
	"github.com/lazypower/instinct/internal/obslog"
	"github.com/lazypower/instinct/internal/store"
)

func testServer(t *testing.T) (*Server, *store.DB) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	eng := engine.New(db, obslog.Open(t.TempDir()), config.Default())
	return New(db, eng, "test"), db
}

func seedInstinct(t *testing.T, db *store.DB, id, domain string, confidence float64) {
	t.Helper()
	now := time.Now().UnixMilli()
	in := &store.Instinct{
		ID:               id,
		Domain:           domain,
		Category:         "tool-preference",
		Trigger:          "searching code",
		Action:           "prefer rg for content-search",
		Confidence:       confidence,
		Source:           store.SourceSession,
		Status:           store.StatusActive,
		CreatedAt:        now,
		LastReinforcedAt: now,
	}
	if err := store.SaveInstinct(db, in); err != nil {
		t.Fatal(err)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "ok" || body["db"] != true {
		t.Errorf("body = %v", body)
	}
}

func TestListInstincts(t *testing.T) {
	srv, db := testServer(t)
	seedInstinct(t, db, "a", "tool-preference", 0.8)
	seedInstinct(t, db, "b", "workflow", 0.4)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/api/instincts", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Instincts []instinctView `json:"instincts"`
		Count     int            `json:"count"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Count != 2 {
		t.Errorf("count = %d", body.Count)
	}
	// Ordered by confidence descending.
	if body.Instincts[0].ID != "a" {
		t.Errorf("first = %s", body.Instincts[0].ID)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/api/instincts?domain=workflow", nil))
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Count != 1 || body.Instincts[0].ID != "b" {
		t.Errorf("domain filter: %+v", body)
	}
}

func TestGetInstinct(t *testing.T) {
	srv, db := testServer(t)
	seedInstinct(t, db, "a", "tool-preference", 0.8)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/api/instincts/a", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/api/instincts/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing id status = %d", rec.Code)
	}
}

func TestObserveRunsPass(t *testing.T) {
	srv, db := testServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("POST", "/api/observe", strings.NewReader(`{}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var report engine.Report
	json.Unmarshal(rec.Body.Bytes(), &report)
	if report.Mode != engine.ModeIncremental {
		t.Errorf("mode = %s", report.Mode)
	}

	// The pass persisted its report.
	data, _ := store.LatestReport(db)
	if data == nil {
		t.Error("no report stored after observe")
	}
}

func TestObserveBusy(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	dir := t.TempDir()
	eng := engine.New(db, obslog.Open(dir), config.Default())
	srv := New(db, eng, "test")

	// A concurrent pass holds the lock for the duration of the request.
	lock, err := engine.AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer lock.Release()

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("POST", "/api/observe", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestSkillUsageEndpoint(t *testing.T) {
	srv, db := testServer(t)
	seedInstinct(t, db, "member", "tool-preference", 0.5)
	store.SaveSkill(db, &store.Skill{
		ID: "skill-x", Domain: "tool-preference",
		MemberIDs: []string{"member"}, AvgConfidence: 0.5,
		CreatedAt: time.Now().UnixMilli(),
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/skills/skill-x/usage", strings.NewReader(`{"event_id":"evt-1"}`))
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["recorded"] != true {
		t.Errorf("body = %v", body)
	}

	// Missing event id is a client error.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/api/skills/skill-x/usage", strings.NewReader(`{}`))
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestLatestReportEmpty(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/api/report", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 before any pass", rec.Code)
	}
}
