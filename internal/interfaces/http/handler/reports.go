package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appreports "github.com/storefront/analytics/internal/application/reports"
	"github.com/storefront/analytics/internal/domain/reports"
	"github.com/storefront/analytics/internal/infrastructure/queue"
	"github.com/storefront/analytics/internal/infrastructure/scheduler"
)

// ReportsHandler handles the report pipeline API endpoints
type ReportsHandler struct {
	BaseHandler
	orchestrator  *appreports.SyncOrchestrator
	reportService *appreports.ReportService
	taskQueue     queue.TaskQueue
	logger        *zap.Logger
}

// NewReportsHandler creates a new ReportsHandler
func NewReportsHandler(
	orchestrator *appreports.SyncOrchestrator,
	reportService *appreports.ReportService,
	taskQueue queue.TaskQueue,
	logger *zap.Logger,
) *ReportsHandler {
	return &ReportsHandler{
		orchestrator:  orchestrator,
		reportService: reportService,
		taskQueue:     taskQueue,
		logger:        logger,
	}
}

// RegenerateRequest is the body for POST /reports/regenerate
type RegenerateRequest struct {
	Days         int  `json:"days" binding:"omitempty,min=0,max=3650"`
	SkipExisting bool `json:"skip_existing"`
}

// Regenerate starts a full rebuild of the derived report tables
func (h *ReportsHandler) Regenerate(c *gin.Context) {
	var req RegenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	message, err := h.orchestrator.Regenerate(c.Request.Context(), req.Days, req.SkipExisting)
	if err != nil {
		h.logger.Error("Failed to start regeneration", zap.Error(err))
		h.Internal(c, "failed to start report regeneration")
		return
	}

	h.Accepted(c, gin.H{"message": message})
}

// SyncOrder queues a sync of a single order, for storefront webhooks
func (h *ReportsHandler) SyncOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.BadRequest(c, "order id must be an integer")
		return
	}

	if err := h.orchestrator.ScheduleSyncOrder(c.Request.Context(), orderID); err != nil {
		h.logger.Error("Failed to queue order sync",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		h.Internal(c, "failed to queue order sync")
		return
	}

	h.Accepted(c, gin.H{"order_id": orderID})
}

// RevenueQueryRequest is the query string for GET /reports/revenue
type RevenueQueryRequest struct {
	After     string `form:"after" binding:"required,reporttime"`
	Before    string `form:"before" binding:"required,reporttime"`
	Interval  string `form:"interval" binding:"required,oneof=hour day week month quarter year"`
	SegmentBy string `form:"segmentby" binding:"omitempty,oneof=product category coupon customer_type"`
	Fields    string `form:"fields"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PerPage   int    `form:"per_page" binding:"omitempty,min=1,max=100"`
	Order     string `form:"order" binding:"omitempty,oneof=asc desc"`
	OrderBy   string `form:"orderby" binding:"omitempty,oneof=date orders_count num_items_sold total_sales net_revenue tax_total"`
}

// RevenueStats returns the bucketed revenue report
func (h *ReportsHandler) RevenueStats(c *gin.Context) {
	var req RevenueQueryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	after, err := parseReportTime(req.After, false)
	if err != nil {
		h.BadRequest(c, "after must be a date or RFC3339 timestamp")
		return
	}
	before, err := parseReportTime(req.Before, true)
	if err != nil {
		h.BadRequest(c, "before must be a date or RFC3339 timestamp")
		return
	}

	var fields []string
	if req.Fields != "" {
		fields = strings.Split(req.Fields, ",")
	}

	report, err := h.reportService.RevenueStats(c.Request.Context(), appreports.RevenueQuery{
		After:     after,
		Before:    before,
		Interval:  reports.Granularity(req.Interval),
		SegmentBy: reports.Dimension(req.SegmentBy),
		Fields:    fields,
		Page:      req.Page,
		PerPage:   req.PerPage,
		Order:     req.Order,
		OrderBy:   req.OrderBy,
	})
	if err != nil {
		h.logger.Error("Revenue report failed", zap.Error(err))
		h.BadRequest(c, err.Error())
		return
	}

	h.Success(c, report)
}

// JobsQueryRequest is the query string for GET /reports/jobs
type JobsQueryRequest struct {
	Status  string `form:"status" binding:"omitempty,oneof=PENDING CLAIMED COMPLETE FAILED"`
	Hook    string `form:"hook"`
	Search  string `form:"search"`
	PerPage int    `form:"per_page" binding:"omitempty,min=1,max=100"`
}

// Jobs lists queued pipeline jobs, for observing a running regeneration
func (h *ReportsHandler) Jobs(c *gin.Context) {
	var req JobsQueryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if req.PerPage == 0 {
		req.PerPage = 25
	}

	jobs, err := h.taskQueue.Search(c.Request.Context(), queue.SearchFilter{
		Status:  queue.JobStatus(req.Status),
		Hook:    req.Hook,
		Search:  req.Search,
		Group:   scheduler.QueueGroup,
		OrderBy: "run_at",
		Order:   "asc",
		PerPage: req.PerPage,
	})
	if err != nil {
		h.logger.Error("Job search failed", zap.Error(err))
		h.Internal(c, "failed to search jobs")
		return
	}

	h.Success(c, gin.H{"jobs": jobs, "count": len(jobs)})
}

// parseReportTime accepts a plain date or an RFC3339 timestamp. Plain dates
// resolve to the start of the day, or the end of it for range upper bounds.
func parseReportTime(value string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		return t.Add(24*time.Hour - time.Second), nil
	}
	return t, nil
}
