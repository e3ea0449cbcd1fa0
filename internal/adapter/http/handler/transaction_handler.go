package handler

import (
	"micro-savings-wallet/internal/adapter/http/dto"
	"micro-savings-wallet/internal/core/domain"
	"micro-savings-wallet/internal/core/ports"
	"micro-savings-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// TransactionHandler serves per-user balance and history lookups.
type TransactionHandler struct {
	reportingSvc ports.ReportingService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(reportingSvc ports.ReportingService) *TransactionHandler {
	return &TransactionHandler{reportingSvc: reportingSvc}
}

// GetBalance handles GET /api/v1/transactions/balance/:userId.
func (h *TransactionHandler) GetBalance(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	balance, currency, err := h.reportingSvc.GetBalance(c.Request.Context(), userID, c.Query("currency"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "User balance", dto.BalanceResponse{
		UserID:   userID.String(),
		Currency: currency,
		Balance:  balance,
	})
}

// GetUserTransactions handles GET /api/v1/transactions/:userId.
func (h *TransactionHandler) GetUserTransactions(c *gin.Context) {
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

	txns, err := h.reportingSvc.GetUserTransactions(c.Request.Context(), userID, q.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}

	response.OK(c, "User transactions", dto.UserTransactionsResponse{
		UserID: userID.String(),
		Items:  txns,
	})
}
