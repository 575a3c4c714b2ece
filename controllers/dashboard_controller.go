package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"

	"nepse_dashboard/models"
	"nepse_dashboard/scheduler"
)

// Response headers describing the snapshot served by /latest
const (
	HeaderSnapshotVersion   = "X-Snapshot-Version"
	HeaderSnapshotCycle     = "X-Snapshot-Cycle"
	HeaderSnapshotUpdatedAt = "X-Snapshot-Updated-At"
)

// refreshWait bounds how long POST /refresh waits for its cycle.
const refreshWait = 3 * time.Minute

//go:generate mockgen -package=controllers_test -destination=mock_dashboard_controller_test.go -source=dashboard_controller.go

// SnapshotReader returns the latest published snapshot.
type SnapshotReader interface {
	Current() (*models.Snapshot, bool)
}

// CycleScheduler runs and reports on fetch cycles.
type CycleScheduler interface {
	RunNow(ctx context.Context) (*models.Snapshot, error)
	Status(now time.Time) scheduler.Status
}

// DashboardController handles the dashboard page and its JSON endpoints
type DashboardController struct {
	store     SnapshotReader
	scheduler CycleScheduler
	stream    http.Handler
	now       func() time.Time
}

// NewDashboardController creates a new dashboard controller. stream serves
// websocket upgrades on /ws.
func NewDashboardController(store SnapshotReader, sched CycleScheduler, stream http.Handler) *DashboardController {
	return &DashboardController{
		store:     store,
		scheduler: sched,
		stream:    stream,
		now:       time.Now,
	}
}

// Dashboard renders the HTML dashboard
// GET /
func (dc *DashboardController) Dashboard(c *gin.Context) {
	snap, _ := dc.store.Current()
	status := dc.scheduler.Status(dc.now())

	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"Title":          "NEPSE Smart Money Dashboard",
		"Snapshot":       snap,
		"NextRun":        status.NextRun,
		"Stale":          status.Stale,
		"WaitingMessage": waitingMessage(status),
	})
}

// waitingMessage is shown until the first cycle has been published. NextRun
// is already in the schedule's timezone.
func waitingMessage(status scheduler.Status) string {
	if status.NextRun.IsZero() {
		return "Waiting for first update…"
	}
	return fmt.Sprintf("Waiting for first update (%s %s)…", status.NextRun.Format("15:04"), status.Timezone)
}

// Latest returns the latest snapshot keyed by symbol, or {} before the first
// cycle completes
// GET /latest
func (dc *DashboardController) Latest(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	snap, ok := dc.store.Current()
	if !ok {
		// encoding/json writes a nil *Snapshot as null
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.Header(HeaderSnapshotVersion, strconv.FormatUint(snap.Version, 10))
	c.Header(HeaderSnapshotCycle, snap.CycleID)
	c.Header(HeaderSnapshotUpdatedAt, snap.CompletedAt.UTC().Format(time.RFC3339))
	c.JSON(http.StatusOK, snap)
}

// Status returns the scheduler status
// GET /status
func (dc *DashboardController) Status(c *gin.Context) {
	c.JSON(http.StatusOK, dc.scheduler.Status(dc.now()))
}

// Refresh runs a fetch cycle now
// POST /refresh
func (dc *DashboardController) Refresh(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), refreshWait)
	defer cancel()

	snap, err := dc.scheduler.RunNow(ctx)
	switch {
	case errors.Is(err, scheduler.ErrCycleInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "A fetch cycle is already running"})
		return
	case err != nil:
		glog.Errorf("Manual refresh failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Refresh failed"})
		return
	}

	okCount, failed, degraded := snap.Counts()
	c.JSON(http.StatusAccepted, gin.H{
		"version":  snap.Version,
		"cycle_id": snap.CycleID,
		"ok":       okCount,
		"failed":   failed,
		"degraded": degraded,
	})
}

// Stream upgrades the connection to a websocket that receives snapshots
// GET /ws
func (dc *DashboardController) Stream(c *gin.Context) {
	dc.stream.ServeHTTP(c.Writer, c.Request)
}

// Health is the liveness probe
// GET /health
func (dc *DashboardController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
