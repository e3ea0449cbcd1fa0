package handler

import (
	"micro-savings-wallet/internal/adapter/http/dto"
	"micro-savings-wallet/internal/core/ports"
	"micro-savings-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LedgerHandler exposes the money-moving operations.
type LedgerHandler struct {
	ledgerSvc ports.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerSvc ports.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc}
}

// Deposit handles POST /api/v1/dashboard/deposit.
func (h *LedgerHandler) Deposit(c *gin.Context) {
	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	key, ok := idempotencyKey(c)
	if !ok {
		return
	}

	txn, err := h.ledgerSvc.Deposit(c.Request.Context(), ports.DepositRequest{
		UserID:         uuid.MustParse(req.UserID),
		Amount:         req.Amount.String(),
		Currency:       req.Currency,
		IdempotencyKey: key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Deposit completed", txn)
}

// Transfer handles POST /api/v1/dashboard/transfer.
func (h *LedgerHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	key, ok := idempotencyKey(c)
	if !ok {
		return
	}

	txn, err := h.ledgerSvc.Transfer(c.Request.Context(), ports.TransferRequest{
		FromUserID:     uuid.MustParse(req.FromUserID),
		ToUserID:       uuid.MustParse(req.ToUserID),
		Amount:         req.Amount.String(),
		Currency:       req.Currency,
		IdempotencyKey: key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Transfer completed", txn)
}

// Withdraw handles POST /api/v1/dashboard/withdraw.
func (h *LedgerHandler) Withdraw(c *gin.Context) {
	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	key, ok := idempotencyKey(c)
	if !ok {
		return
	}

	txn, err := h.ledgerSvc.Withdraw(c.Request.Context(), ports.WithdrawRequest{
		UserID:         uuid.MustParse(req.UserID),
		Amount:         req.Amount.String(),
		Currency:       req.Currency,
		IdempotencyKey: key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Withdrawal initiated", txn)
}

// idempotencyKey reads the optional Idempotency-Key header. An empty key
// lets the ledger generate one. It writes the error response itself.
func idempotencyKey(c *gin.Context) (string, bool) {
	var hdr dto.IdempotencyHeader
	if err := c.ShouldBindHeader(&hdr); err != nil {
		response.Error(c, bindError(err))
		return "", false
	}
	return hdr.Key, true
}
