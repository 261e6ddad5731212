package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mainos-ai/mainos/internal/engine"
	"github.com/mainos-ai/mainos/internal/export"
	"github.com/mainos-ai/mainos/internal/store"
)

// Generator runs one report end to end.
type Generator interface {
	Run(ctx context.Context, req engine.RunRequest) (*engine.Document, error)
}

// ReportStore is the slice of the store the report handlers need.
type ReportStore interface {
	CreateRun(ctx context.Context, userID, topic, reportType string) (string, error)
	UpdateRunStatus(ctx context.Context, runID, status, reportID, runErr string) error
	GetRun(ctx context.Context, runID, userID string) (store.RunRecord, error)
	SaveReport(ctx context.Context, userID string, doc *engine.Document) (string, error)
	GetReport(ctx context.Context, reportID, userID string) (store.ReportRecord, error)
	ListReports(ctx context.Context, userID string) ([]store.ReportSummary, error)
	DeleteReport(ctx context.Context, reportID, userID string) error
}

// StatusSink publishes live run progress.
type StatusSink interface {
	Set(ctx context.Context, st store.RunStatus) error
	Get(ctx context.Context, runID string) (store.RunStatus, error)
}

// ReportsHandler serves the asynchronous report lifecycle: accept a run,
// poll its status, fetch and export the finished report.
type ReportsHandler struct {
	Store      ReportStore
	Tracker    StatusSink
	Engine     Generator
	Logger     *log.Logger
	RunTimeout time.Duration
}

func (h *ReportsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.POST("/reports", h.create)
	g.GET("/reports", h.list)
	g.GET("/reports/:id", h.get)
	g.GET("/reports/:id/export", h.export)
	g.DELETE("/reports/:id", h.delete)
	g.GET("/runs/:id", h.status)
}

func (h *ReportsHandler) create(c echo.Context) error {
	var req CreateReportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Topic) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "topic is required")
	}
	uid := userID(c)
	reportType := string(engine.ReportType(req.ReportType).Normalize())

	runID, err := h.Store.CreateRun(c.Request().Context(), uid, req.Topic, reportType)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.publish(c.Request().Context(), store.RunStatus{RunID: runID, Status: store.RunStatusPending})

	go h.generate(runID, uid, req)

	return c.JSON(http.StatusAccepted, CreateReportResponse{RunID: runID})
}

// generate executes the run in the background, detached from the request
// context.
func (h *ReportsHandler) generate(runID, uid string, req CreateReportRequest) {
	timeout := h.RunTimeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	h.publish(ctx, store.RunStatus{RunID: runID, Status: store.RunStatusRunning})
	if err := h.Store.UpdateRunStatus(ctx, runID, store.RunStatusRunning, "", ""); err != nil {
		h.Logger.Printf("run %s: status update to %s failed: %v", runID, store.RunStatusRunning, err)
	}

	doc, err := h.Engine.Run(ctx, engine.RunRequest{
		Topic:      req.Topic,
		ReportType: engine.ReportType(req.ReportType),
		Tone:       engine.Tone(req.Tone),
		Length:     engine.Length(req.Length),
		Benchmark:  req.Benchmark,
		Options:    req.Options,
	})
	if err != nil {
		h.Logger.Printf("run %s failed: %v", runID, err)
		h.finish(ctx, store.RunStatus{RunID: runID, Status: store.RunStatusFailed, Error: err.Error()})
		return
	}

	reportID, err := h.Store.SaveReport(ctx, uid, doc)
	if err != nil {
		h.Logger.Printf("run %s: report save failed: %v", runID, err)
		h.finish(ctx, store.RunStatus{RunID: runID, Status: store.RunStatusFailed, Error: err.Error()})
		return
	}
	h.finish(ctx, store.RunStatus{RunID: runID, Status: store.RunStatusCompleted, ReportID: reportID})
}

// finish persists a terminal run status. The writes run on a context
// detached from the run's deadline so a run killed by its own timeout
// still lands as failed instead of lingering as running.
func (h *ReportsHandler) finish(ctx context.Context, st store.RunStatus) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	h.publish(ctx, st)
	if err := h.Store.UpdateRunStatus(ctx, st.RunID, st.Status, st.ReportID, st.Error); err != nil {
		h.Logger.Printf("run %s: status update to %s failed: %v", st.RunID, st.Status, err)
	}
}

func (h *ReportsHandler) publish(ctx context.Context, st store.RunStatus) {
	if h.Tracker == nil {
		return
	}
	if err := h.Tracker.Set(ctx, st); err != nil {
		h.Logger.Printf("status publish failed for run %s: %v", st.RunID, err)
	}
}

// status fetches the durable run row once, which also settles ownership,
// and overlays the fresher tracker entry when one exists.
func (h *ReportsHandler) status(c echo.Context) error {
	runID := c.Param("id")

	rec, err := h.Store.GetRun(c.Request().Context(), runID, userID(c))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := RunStatusResponse{
		RunID:     rec.ID,
		Status:    rec.Status,
		Error:     rec.Error,
		ReportID:  rec.ReportID,
		UpdatedAt: rec.UpdatedAt,
	}
	if h.Tracker != nil {
		if st, terr := h.Tracker.Get(c.Request().Context(), runID); terr == nil {
			resp = RunStatusResponse(st)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ReportsHandler) list(c echo.Context) error {
	summaries, err := h.Store.ListReports(c.Request().Context(), userID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]ReportListItem, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, ReportListItem{ID: s.ID, Topic: s.Topic, ReportType: s.ReportType, Title: s.Title, CreatedAt: s.CreatedAt})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ReportsHandler) get(c echo.Context) error {
	rec, err := h.Store.GetReport(c.Request().Context(), c.Param("id"), userID(c))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rec.Document)
}

func (h *ReportsHandler) export(c echo.Context) error {
	rec, err := h.Store.GetReport(c.Request().Context(), c.Param("id"), userID(c))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	format := c.QueryParam("format")
	if format != "" && format != "markdown" {
		return echo.NewHTTPError(http.StatusBadRequest, "unsupported format: "+format)
	}
	return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", []byte(export.Markdown(&rec.Document)))
}

func (h *ReportsHandler) delete(c echo.Context) error {
	err := h.Store.DeleteReport(c.Request().Context(), c.Param("id"), userID(c))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
