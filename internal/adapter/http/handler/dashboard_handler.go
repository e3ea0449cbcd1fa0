package handler

import (
	"fmt"
	"math"
	"strings"

	"micro-savings-wallet/internal/adapter/http/dto"
	"micro-savings-wallet/internal/core/domain"
	"micro-savings-wallet/internal/core/ports"
	"micro-savings-wallet/pkg/apperror"
	"micro-savings-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// DashboardHandler serves the admin dashboard read endpoints.
type DashboardHandler struct {
	reportingSvc ports.ReportingService
	auditSvc     ports.AuditService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(reportingSvc ports.ReportingService, auditSvc ports.AuditService) *DashboardHandler {
	return &DashboardHandler{reportingSvc: reportingSvc, auditSvc: auditSvc}
}

// Summary handles GET /api/v1/dashboard/summary.
func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, err := h.reportingSvc.GetSystemSummary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Dashboard summary", summary)
}

// ListTransactions handles GET /api/v1/dashboard/transactions.
func (h *DashboardHandler) ListTransactions(c *gin.Context) {
	var q dto.TransactionListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, bindError(err))
		return
	}

	params, err := listParams(q)
	if err != nil {
		response.Error(c, err)
		return
	}

	txns, total, err := h.reportingSvc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}

	response.OK(c, "Dashboard transactions", dto.TransactionListResponse{
		Items:      txns,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(params.PageSize))),
	})
}

// Activity handles GET /api/v1/dashboard/activity.
func (h *DashboardHandler) Activity(c *gin.Context) {
	var q dto.LimitQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, bindError(err))
		return
	}

	entries, err := h.auditSvc.RecentActivity(c.Request.Context(), q.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Recent activity", entries)
}

// UserActivity handles GET /api/v1/dashboard/activity/:userId.
func (h *DashboardHandler) UserActivity(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var q dto.LimitQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, bindError(err))
		return
	}

	entries, err := h.auditSvc.UserActivity(c.Request.Context(), userID, q.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "User activity", entries)
}

// listParams turns query filters into repository params. Type and status
// are matched case-insensitively.
func listParams(q dto.TransactionListQuery) (ports.TransactionListParams, error) {
	params := ports.TransactionListParams{
		Page:     max(q.Page, 1),
		PageSize: q.PageSize,
	}
	if params.PageSize < 1 {
		params.PageSize = defaultPageSize
	}
	params.PageSize = min(params.PageSize, maxPageSize)

	if q.Type != "" {
		t := domain.TransactionType(strings.ToUpper(q.Type))
		if !t.Valid() {
			return params, apperror.Validation(fmt.Sprintf("Invalid type: %s", q.Type))
		}
		params.Type = &t
	}
	if q.Status != "" {
		s := domain.TransactionStatus(strings.ToUpper(q.Status))
		if !s.Valid() {
			return params, apperror.Validation(fmt.Sprintf("Invalid status: %s", q.Status))
		}
		params.Status = &s
	}
	if q.UserID != "" {
		id := uuid.MustParse(q.UserID)
		params.UserID = &id
	}

	var err error
	if params.From, err = parseTime("from", q.From); err != nil {
		return params, err
	}
	if params.To, err = parseTime("to", q.To); err != nil {
		return params, err
	}
	return params, nil
}
