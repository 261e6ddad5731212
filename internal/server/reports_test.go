package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mainos-ai/mainos/internal/engine"
	"github.com/mainos-ai/mainos/internal/store"
)

type stubReportStore struct {
	mu          sync.Mutex
	runs        map[string]store.RunRecord
	reports     map[string]store.ReportRecord
	nextRun     int
	getRunCalls int
}

func newStubReportStore() *stubReportStore {
	return &stubReportStore{runs: map[string]store.RunRecord{}, reports: map[string]store.ReportRecord{}}
}

func (s *stubReportStore) CreateRun(_ context.Context, userID, topic, reportType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRun++
	id := fmt.Sprintf("run-%d", s.nextRun)
	s.runs[id] = store.RunRecord{ID: id, UserID: userID, Topic: topic, ReportType: reportType, Status: store.RunStatusPending}
	return id, nil
}

func (s *stubReportStore) UpdateRunStatus(_ context.Context, runID, status, reportID, runErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[runID]
	if !ok {
		return store.ErrNotFound
	}
	rec.Status = status
	rec.ReportID = reportID
	rec.Error = runErr
	s.runs[runID] = rec
	return nil
}

func (s *stubReportStore) GetRun(_ context.Context, runID, userID string) (store.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getRunCalls++
	rec, ok := s.runs[runID]
	if !ok || rec.UserID != userID {
		return store.RunRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (s *stubReportStore) SaveReport(_ context.Context, userID string, doc *engine.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[doc.ID] = store.ReportRecord{ID: doc.ID, UserID: userID, Topic: doc.Topic, Title: doc.Title, Document: *doc}
	return doc.ID, nil
}

func (s *stubReportStore) GetReport(_ context.Context, reportID, userID string) (store.ReportRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.reports[reportID]
	if !ok || rec.UserID != userID {
		return store.ReportRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (s *stubReportStore) ListReports(_ context.Context, userID string) ([]store.ReportSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.ReportSummary
	for _, rec := range s.reports {
		if rec.UserID == userID {
			out = append(out, store.ReportSummary{ID: rec.ID, Topic: rec.Topic, Title: rec.Title})
		}
	}
	return out, nil
}

func (s *stubReportStore) DeleteReport(_ context.Context, reportID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.reports[reportID]
	if !ok || rec.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.reports, reportID)
	return nil
}

type stubTracker struct {
	mu       sync.Mutex
	statuses map[string]store.RunStatus
}

func newStubTracker() *stubTracker { return &stubTracker{statuses: map[string]store.RunStatus{}} }

func (t *stubTracker) Set(_ context.Context, st store.RunStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statuses[st.RunID] = st
	return nil
}

func (t *stubTracker) Get(_ context.Context, runID string) (store.RunStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.statuses[runID]
	if !ok {
		return store.RunStatus{}, store.ErrNotFound
	}
	return st, nil
}

type stubGenerator struct {
	doc  *engine.Document
	err  error
	done chan struct{}
}

func (g *stubGenerator) Run(context.Context, engine.RunRequest) (*engine.Document, error) {
	if g.done != nil {
		defer close(g.done)
	}
	return g.doc, g.err
}

func newReportsEnv(gen Generator) (*echo.Echo, *ReportsHandler, string) {
	e := newEcho()
	h := &ReportsHandler{
		Store:   newStubReportStore(),
		Tracker: newStubTracker(),
		Engine:  gen,
		Logger:  log.New(io.Discard, "", 0),
	}
	secret := []byte("test-secret")
	h.Register(e.Group("/api"), secret)
	token, _ := signJWT("user-1", secret, time.Hour)
	return e, h, token
}

func doJSON(e *echo.Echo, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func awaitRun(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("background run did not finish")
	}
}

func TestCreateReportAcceptsAndCompletes(t *testing.T) {
	done := make(chan struct{})
	gen := &stubGenerator{done: done, doc: &engine.Document{
		ID:    "report-1",
		Topic: "EVs",
		Title: "Market Analysis: EVs",
		Sections: []engine.DocumentSection{
			{Title: "Trends", Content: "Growing."},
		},
	}}
	e, h, token := newReportsEnv(gen)

	rec := doJSON(e, http.MethodPost, "/api/reports", token, `{"topic":"EVs","report_type":"market_analysis"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp CreateReportResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	awaitRun(t, done)

	// poll until the completion status lands; the run goroutine updates the
	// tracker right after the generator returns
	deadline := time.Now().Add(2 * time.Second)
	for {
		st, err := h.Tracker.Get(context.Background(), resp.RunID)
		if err == nil && st.Status == store.RunStatusCompleted {
			if st.ReportID != "report-1" {
				t.Fatalf("report id = %q", st.ReportID)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run never completed: %+v (%v)", st, err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec = doJSON(e, http.MethodGet, "/api/reports/report-1", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get report status = %d", rec.Code)
	}
	var doc engine.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Title != "Market Analysis: EVs" {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestCreateReportFailureSurfacesInStatus(t *testing.T) {
	done := make(chan struct{})
	gen := &stubGenerator{done: done, err: errors.New("providers exhausted")}
	e, h, token := newReportsEnv(gen)

	rec := doJSON(e, http.MethodPost, "/api/reports", token, `{"topic":"EVs"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp CreateReportResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	awaitRun(t, done)

	deadline := time.Now().Add(2 * time.Second)
	for {
		st, err := h.Tracker.Get(context.Background(), resp.RunID)
		if err == nil && st.Status == store.RunStatusFailed {
			if !strings.Contains(st.Error, "providers exhausted") {
				t.Fatalf("error not carried: %+v", st)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run never failed: %+v (%v)", st, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// ctxBoundStore fails writes once the caller's context is done, the way a
// real database driver does.
type ctxBoundStore struct {
	*stubReportStore
}

func (s *ctxBoundStore) UpdateRunStatus(ctx context.Context, runID, status, reportID, runErr string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.stubReportStore.UpdateRunStatus(ctx, runID, status, reportID, runErr)
}

type ctxBoundTracker struct {
	*stubTracker
}

func (t *ctxBoundTracker) Set(ctx context.Context, st store.RunStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.stubTracker.Set(ctx, st)
}

type blockingGenerator struct {
	done chan struct{}
}

func (g *blockingGenerator) Run(ctx context.Context, _ engine.RunRequest) (*engine.Document, error) {
	defer close(g.done)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunTimeoutStillPersistsFailedStatus(t *testing.T) {
	done := make(chan struct{})
	st := &ctxBoundStore{newStubReportStore()}
	tr := &ctxBoundTracker{newStubTracker()}
	e := newEcho()
	h := &ReportsHandler{
		Store:      st,
		Tracker:    tr,
		Engine:     &blockingGenerator{done: done},
		Logger:     log.New(io.Discard, "", 0),
		RunTimeout: 50 * time.Millisecond,
	}
	secret := []byte("test-secret")
	h.Register(e.Group("/api"), secret)
	token, _ := signJWT("user-1", secret, time.Hour)

	rec := doJSON(e, http.MethodPost, "/api/reports", token, `{"topic":"EVs"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp CreateReportResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	awaitRun(t, done)

	deadline := time.Now().Add(2 * time.Second)
	for {
		runRec, err := st.GetRun(context.Background(), resp.RunID, "user-1")
		if err == nil && runRec.Status == store.RunStatusFailed {
			if runRec.Error == "" {
				t.Fatal("expected the timeout error on the run row")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run never reached failed, stuck at %q (%v)", runRec.Status, err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	trSt, err := tr.Get(context.Background(), resp.RunID)
	if err != nil || trSt.Status != store.RunStatusFailed {
		t.Fatalf("tracker status = %+v (%v), want failed", trSt, err)
	}
}

func TestRunStatusSingleStoreLookup(t *testing.T) {
	e, h, token := newReportsEnv(&stubGenerator{})
	st := h.Store.(*stubReportStore)
	runID, _ := st.CreateRun(context.Background(), "user-1", "EVs", "generic")
	_ = h.Tracker.Set(context.Background(), store.RunStatus{RunID: runID, Status: store.RunStatusRunning})

	rec := doJSON(e, http.MethodGet, "/api/runs/"+runID, token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp RunStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != store.RunStatusRunning {
		t.Fatalf("tracker status must win, got %q", resp.Status)
	}
	if st.getRunCalls != 1 {
		t.Fatalf("expected one durable lookup per poll, got %d", st.getRunCalls)
	}

	otherToken, _ := signJWT("user-2", []byte("test-secret"), time.Hour)
	rec = doJSON(e, http.MethodGet, "/api/runs/"+runID, otherToken, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign run must 404 even with a tracker entry, got %d", rec.Code)
	}
}

func TestCreateReportRejectsEmptyTopic(t *testing.T) {
	e, _, token := newReportsEnv(&stubGenerator{})
	rec := doJSON(e, http.MethodPost, "/api/reports", token, `{"topic":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestReportEndpointsRequireAuth(t *testing.T) {
	e, _, _ := newReportsEnv(&stubGenerator{})
	rec := doJSON(e, http.MethodPost, "/api/reports", "", `{"topic":"EVs"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	rec = doJSON(e, http.MethodGet, "/api/reports", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestExportReportMarkdown(t *testing.T) {
	e, h, token := newReportsEnv(&stubGenerator{})
	_, _ = h.Store.SaveReport(context.Background(), "user-1", &engine.Document{
		ID:    "report-9",
		Title: "Risk Report: Grid capacity",
		Sections: []engine.DocumentSection{
			{Title: "Introduction", Content: "Context."},
		},
	})

	rec := doJSON(e, http.MethodGet, "/api/reports/report-9/export?format=markdown", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/markdown") {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "# Risk Report: Grid capacity") {
		t.Fatalf("markdown body missing title:\n%s", rec.Body.String())
	}

	rec = doJSON(e, http.MethodGet, "/api/reports/report-9/export?format=pdf", token, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unsupported format must 400, got %d", rec.Code)
	}
}

func TestReportsScopedToOwner(t *testing.T) {
	e, h, _ := newReportsEnv(&stubGenerator{})
	_, _ = h.Store.SaveReport(context.Background(), "user-1", &engine.Document{ID: "report-1", Title: "t"})

	secret := []byte("test-secret")
	otherToken, _ := signJWT("user-2", secret, time.Hour)
	rec := doJSON(e, http.MethodGet, "/api/reports/report-1", otherToken, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign report must 404, got %d", rec.Code)
	}
	rec = doJSON(e, http.MethodDelete, "/api/reports/report-1", otherToken, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign delete must 404, got %d", rec.Code)
	}
}
