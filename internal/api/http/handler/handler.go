package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dtroode/kurisync/internal/logger"
	"github.com/dtroode/kurisync/internal/model"
	"github.com/dtroode/kurisync/internal/service"
)

// QueryService serves the read endpoints.
type QueryService interface {
	Registry(ctx context.Context) (model.Registry, error)
	RefreshLedgers(ctx context.Context) ([]service.LedgerResult, error)
	RefreshUsers(ctx context.Context) ([]service.UserResult, error)
	PaymentStatus(ctx context.Context, contract, user string) (service.PaymentStatus, error)
	Status(ctx context.Context, contract, user string) (model.Status, error)
	Overview(ctx context.Context, wallet string) (model.Overview, error)
	Snapshot(ctx context.Context, key string) (io.ReadCloser, error)
}

// SyncService runs synchronization jobs on demand.
type SyncService interface {
	Run(ctx context.Context, job model.Job) (model.SyncReport, error)
}

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	_ QueryService = (*service.Query)(nil)
	_ SyncService  = (*service.Sync)(nil)
)

// Handler implements the read API.
type Handler struct {
	query  QueryService
	sync   SyncService
	store  Pinger
	logger *logger.Logger
}

func New(query QueryService, sync SyncService, store Pinger, logger *logger.Logger) *Handler {
	return &Handler{query: query, sync: sync, store: store, logger: logger}
}

// Welcome handles GET /.
func (h *Handler) Welcome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to kurisync"})
}

// Health handles GET /healthz.
func (h *Handler) Health(c *gin.Context) {
	if h.store != nil {
		if err := h.store.Ping(c.Request.Context()); err != nil {
			h.logger.Error("health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SheetData handles GET /api/sheetData.
func (h *Handler) SheetData(c *gin.Context) {
	reg, err := h.query.Registry(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reg)
}

// RoscaData handles GET /api/roscaData.
func (h *Handler) RoscaData(c *gin.Context) {
	results, err := h.query.RefreshLedgers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// UserData handles GET /api/userData.
func (h *Handler) UserData(c *gin.Context) {
	results, err := h.query.RefreshUsers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// PaymentStatus handles GET /api/roscaPaymentStatus/:contractAddress/:userAddress.
func (h *Handler) PaymentStatus(c *gin.Context) {
	status, err := h.query.PaymentStatus(c.Request.Context(), c.Param("contractAddress"), c.Param("userAddress"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Status handles GET /api/statuses/:contractAddress/:userAddress.
func (h *Handler) Status(c *gin.Context) {
	status, err := h.query.Status(c.Request.Context(), c.Param("contractAddress"), c.Param("userAddress"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Overview handles GET /api/mvp/:walletAddress.
func (h *Handler) Overview(c *gin.Context) {
	overview, err := h.query.Overview(c.Request.Context(), c.Param("walletAddress"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

// TriggerSync handles POST /api/sync/:job.
func (h *Handler) TriggerSync(c *gin.Context) {
	job, err := model.ParseJob(c.Param("job"))
	if err != nil {
		h.fail(c, err)
		return
	}

	report, err := h.sync.Run(c.Request.Context(), job)
	if err != nil && report.RunID != "" {
		code, message := statusOf(err)
		h.logger.Error("sync job failed", "job", job, "operator", c.GetString(OperatorKey), "run_id", report.RunID, "error", err)
		c.JSON(code, SyncFailureResponse{
			ErrorResponse: ErrorResponse{Error: message, Details: err.Error()},
			Report:        report,
		})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	h.logger.Info("sync triggered", "job", job, "operator", c.GetString(OperatorKey), "run_id", report.RunID)
	c.JSON(http.StatusOK, report)
}

// Snapshot handles GET /api/registry/snapshots/:key.
func (h *Handler) Snapshot(c *gin.Context) {
	rc, err := h.query.Snapshot(c.Request.Context(), c.Param("key"))
	if err != nil {
		h.fail(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, "application/json", rc, nil)
}
