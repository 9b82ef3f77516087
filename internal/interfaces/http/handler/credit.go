package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appcredit "github.com/propman/backend/internal/application/credit"
	"github.com/propman/backend/internal/domain/credit"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/interfaces/http/dto"
)

// CreditHandler handles credit balance query endpoints
type CreditHandler struct {
	BaseHandler
	creditService *appcredit.CreditQueryService
}

// NewCreditHandler creates a new CreditHandler
func NewCreditHandler(creditService *appcredit.CreditQueryService) *CreditHandler {
	return &CreditHandler{creditService: creditService}
}

// CreditBalanceResponse represents a unit's credit balance
type CreditBalanceResponse struct {
	UnitID  string `json:"unit_id"`
	Balance int64  `json:"balance"`
}

// CreditTransactionResponse represents one credit ledger entry
type CreditTransactionResponse struct {
	ID                  string    `json:"id"`
	UnitID              string    `json:"unit_id"`
	Type                string    `json:"type"`
	Amount              int64     `json:"amount"`
	BalanceBefore       int64     `json:"balance_before"`
	BalanceAfter        int64     `json:"balance_after"`
	SourceTransactionID string    `json:"source_transaction_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

func newCreditTransactionResponse(txn *credit.CreditTransaction) CreditTransactionResponse {
	return CreditTransactionResponse{
		ID:                  txn.ID.String(),
		UnitID:              txn.UnitID.String(),
		Type:                string(txn.Type),
		Amount:              txn.Amount.Int64(),
		BalanceBefore:       txn.BalanceBefore.Int64(),
		BalanceAfter:        txn.BalanceAfter.Int64(),
		SourceTransactionID: txn.SourceTransactionID,
		CreatedAt:           txn.CreatedAt,
	}
}

// GetBalance returns the unit's current credit balance
func (h *CreditHandler) GetBalance(c *gin.Context) {
	clientID, err := getClientID(c)
	if err != nil {
		h.BadRequest(c, "Invalid client ID")
		return
	}

	unitID, err := uuid.Parse(c.Param("unitId"))
	if err != nil {
		h.BadRequest(c, "Invalid unit ID format")
		return
	}

	balance, err := h.creditService.GetBalance(c.Request.Context(), clientID, unitID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, CreditBalanceResponse{
		UnitID:  unitID.String(),
		Balance: balance.Int64(),
	})
}

// ListHistory returns the unit's credit ledger, newest first
func (h *CreditHandler) ListHistory(c *gin.Context) {
	clientID, err := getClientID(c)
	if err != nil {
		h.BadRequest(c, "Invalid client ID")
		return
	}

	unitID, err := uuid.Parse(c.Param("unitId"))
	if err != nil {
		h.BadRequest(c, "Invalid unit ID format")
		return
	}

	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := shared.DefaultFilter()
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}
	if req.OrderBy != "" {
		filter.OrderBy = req.OrderBy
	}
	if req.OrderDir != "" {
		filter.OrderDir = req.OrderDir
	}

	page, err := h.creditService.ListHistory(c.Request.Context(), clientID, unitID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]CreditTransactionResponse, len(page.Items))
	for i, txn := range page.Items {
		items[i] = newCreditTransactionResponse(txn)
	}

	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize)
}

// RegisterRoutes registers credit routes
func (h *CreditHandler) RegisterRoutes(rg *gin.RouterGroup) {
	units := rg.Group("/units/:unitId/credit")
	{
		units.GET("", h.GetBalance)
		units.GET("/history", h.ListHistory)
	}
}
