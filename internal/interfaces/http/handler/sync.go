// Package handler exposes the sync trigger and run inspection API.
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/domain/sync"
	"github.com/shopsync/backend/internal/interfaces/http/dto"
	"github.com/shopsync/backend/internal/interfaces/http/middleware"
)

// defaultRunListLimit bounds run listings when the client sends no limit.
const defaultRunListLimit = 20

// SyncTrigger starts sync runs. The application orchestrator satisfies this.
type SyncTrigger interface {
	TriggerSync(ctx context.Context, tenantID uuid.UUID, flowType sync.FlowType, trigger sync.TriggerKind) (*sync.ExecutionLogEntry, error)
}

// SyncHandler handles manual sync triggers and run queries
type SyncHandler struct {
	BaseHandler
	trigger SyncTrigger
	logs    sync.ExecutionLogRepository
	logger  *zap.Logger
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(trigger SyncTrigger, logs sync.ExecutionLogRepository, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		trigger: trigger,
		logs:    logs,
		logger:  logger.Named("sync_handler"),
	}
}

// RegisterRoutes registers sync routes
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/sync")
	{
		group.POST("/trigger", h.TriggerSync)
		group.GET("/runs", h.ListRuns)
		group.GET("/runs/:id", h.GetRun)
	}
}

// TriggerSync runs a manual sync for a tenant and replies with the finished
// run. Manual runs bypass the tenant's business hours window and execute on
// the request context.
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	var req dto.TriggerSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		h.BadRequest(c, "tenant_id must be a valid UUID")
		return
	}

	entry, err := h.trigger.TriggerSync(c.Request.Context(), tenantID, sync.FlowType(req.FlowType), sync.TriggerManual)
	if err != nil {
		h.logger.Warn("manual sync trigger rejected",
			zap.String("tenant_id", req.TenantID),
			zap.String("flow_type", req.FlowType),
			zap.Error(err),
		)
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, dto.RunResponseFromEntry(entry))
}

// ListRuns returns recent runs for a tenant, newest first
func (h *SyncHandler) ListRuns(c *gin.Context) {
	var req dto.ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		h.BadRequest(c, "tenant_id must be a valid UUID")
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultRunListLimit
	}

	entries, err := h.logs.FindRecentByTenant(c.Request.Context(), tenantID, limit)
	if err != nil {
		h.logger.Error("failed to list runs", zap.Error(err))
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, dto.RunListFromEntries(entries))
}

// GetRun returns one run together with its correlated step entries
func (h *SyncHandler) GetRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "id must be a valid UUID")
		return
	}

	entry, err := h.logs.FindByID(c.Request.Context(), runID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	correlated, err := h.logs.FindByCorrelation(c.Request.Context(), entry.CorrelationID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{
		"run":   dto.RunResponseFromEntry(entry),
		"steps": dto.RunListFromEntries(correlated).Runs,
	}))
}
