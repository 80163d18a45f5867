package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"

	"github.com/glancelabs/glance/backend/internal/capture"
	"github.com/glancelabs/glance/backend/internal/logging"
	"github.com/glancelabs/glance/backend/internal/pipeline"
	"github.com/glancelabs/glance/backend/internal/storage"
	"github.com/glancelabs/glance/backend/internal/types"
)

// summaryCacheTTL covers historical day summaries, which only change
// when the nightly finalization rewrites them.
const summaryCacheTTL = 15 * time.Minute

// Handlers holds the API handler dependencies.
type Handlers struct {
	pipeline  *pipeline.Pipeline
	scheduler *capture.Scheduler
	store     storage.Store
	sink      *storage.BufferedSink
	cache     *gocache.Cache
	log       *logging.Logger
	started   time.Time
}

// NewHandlers creates the handler set.
func NewHandlers(p *pipeline.Pipeline, scheduler *capture.Scheduler, store storage.Store, sink *storage.BufferedSink, log *logging.Logger) *Handlers {
	return &Handlers{
		pipeline:  p,
		scheduler: scheduler,
		store:     store,
		sink:      sink,
		cache:     gocache.New(summaryCacheTTL, 2*summaryCacheTTL),
		log:       log.Component("api"),
		started:   time.Now(),
	}
}

// Root returns service information.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "glance-tracker",
		"version": "1.0.0",
		"endpoints": []string{
			"/health",
			"/summary",
			"/summary/:date",
			"/sessions",
			"/capture/start",
			"/capture/stop",
			"/capture/toggle",
			"/capture/status",
			"/config/exclusions",
			"/metrics",
		},
	})
}

// Health returns service health. Storage degradation is reported, not
// treated as failure: the tracker keeps running on its buffer.
func (h *Handlers) Health(c *gin.Context) {
	status := "ok"
	degraded := h.sink != nil && h.sink.Degraded()
	if degraded {
		status = "degraded"
	}

	body := gin.H{
		"status":          status,
		"capture_running": h.scheduler.Running(),
		"uptime_seconds":  int64(time.Since(h.started).Seconds()),
	}
	if h.sink != nil {
		body["storage_degraded"] = degraded
		body["buffered_writes"] = h.sink.Buffered()
	}
	c.JSON(http.StatusOK, body)
}

// TodaySummary returns the live rolling summary for today, including
// the open session's duration so far.
func (h *Handlers) TodaySummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.pipeline.Snapshot(time.Now()))
}

// SummaryForDate returns the summary for a specific date. Today is
// served live; past days come from storage through a short-lived cache.
func (h *Handlers) SummaryForDate(c *gin.Context) {
	date := c.Param("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	if date == types.DateKey(time.Now()) {
		h.TodaySummary(c)
		return
	}

	if cached, ok := h.cache.Get(date); ok {
		c.JSON(http.StatusOK, cached.(types.DaySummary))
		return
	}

	summary, err := h.store.DaySummary(c.Request.Context(), date)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no summary for " + date})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load summary"})
		return
	}

	h.cache.SetDefault(date, summary)
	c.JSON(http.StatusOK, summary)
}

// Sessions returns a date's closed sessions plus today's open one.
func (h *Handlers) Sessions(c *gin.Context) {
	date := c.DefaultQuery("date", types.DateKey(time.Now()))
	if _, err := time.Parse("2006-01-02", date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	sessions, err := h.store.SessionsForDate(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sessions"})
		return
	}
	if sessions == nil {
		sessions = []types.ActivitySession{}
	}

	body := gin.H{
		"date":     date,
		"sessions": sessions,
	}
	if date == types.DateKey(time.Now()) {
		if open := h.pipeline.OpenSession(); open != nil {
			body["open_session"] = open
		}
	}
	c.JSON(http.StatusOK, body)
}

// StartCapture starts the capture scheduler.
func (h *Handlers) StartCapture(c *gin.Context) {
	h.scheduler.Start()
	h.captureStatus(c)
}

// StopCapture stops the scheduler and flushes the open session.
func (h *Handlers) StopCapture(c *gin.Context) {
	h.scheduler.Stop()
	h.captureStatus(c)
}

// ToggleCapture flips the capture state.
func (h *Handlers) ToggleCapture(c *gin.Context) {
	h.scheduler.Toggle()
	h.captureStatus(c)
}

// CaptureStatus reports the current capture state.
func (h *Handlers) CaptureStatus(c *gin.Context) {
	h.captureStatus(c)
}

func (h *Handlers) captureStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"running":          h.scheduler.Running(),
		"interval_seconds": h.scheduler.Interval().Seconds(),
		"exclusions":       h.scheduler.Exclusions(),
	})
}

type exclusionsRequest struct {
	Exclusions []string `json:"exclusions"`
}

// SetExclusions replaces the excluded bundle identifier set.
func (h *Handlers) SetExclusions(c *gin.Context) {
	var req exclusionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"exclusions\": [...]}"})
		return
	}

	h.scheduler.SetExclusions(req.Exclusions)
	h.log.Info("exclusions updated")
	c.JSON(http.StatusOK, gin.H{"exclusions": h.scheduler.Exclusions()})
}
