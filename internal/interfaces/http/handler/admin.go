package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appbilling "github.com/propman/backend/internal/application/billing"
	"github.com/propman/backend/internal/domain/shared/valueobject"
)

// AdminHandler handles the audited administrative endpoints. Every
// operation requires the acting operator in the X-Operator-ID header.
type AdminHandler struct {
	BaseHandler
	adminService *appbilling.AdminService
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(adminService *appbilling.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// CorrectBillRequest is the request body for correcting a bill's charges.
// Amounts replace the bill's current values outright.
type CorrectBillRequest struct {
	Reason        string `json:"reason" binding:"required,max=500"`
	BaseCharge    int64  `json:"base_charge" binding:"min=0"`
	PenaltyAmount int64  `json:"penalty_amount" binding:"min=0"`
}

// AdjustCreditRequest is the request body for a signed operator credit
// adjustment
type AdjustCreditRequest struct {
	UnitID    string `json:"unit_id" binding:"required,uuid"`
	Amount    int64  `json:"amount" binding:"required"`
	Reference string `json:"reference" binding:"omitempty,max=100"`
}

// CorrectBill amends a bill's base charge and penalty, recording the
// operator and reason in the bill's correction trail
func (h *AdminHandler) CorrectBill(c *gin.Context) {
	clientID, err := getClientID(c)
	if err != nil {
		h.BadRequest(c, "Invalid client ID")
		return
	}

	operatorID, err := getOperatorID(c)
	if err != nil {
		h.BadRequest(c, "Missing or malformed X-Operator-ID header")
		return
	}

	billID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid bill ID format")
		return
	}

	var req CorrectBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	bill, err := h.adminService.CorrectBill(c.Request.Context(), appbilling.CorrectBillRequest{
		ClientID:      clientID,
		BillID:        billID,
		OperatorID:    operatorID,
		Reason:        req.Reason,
		BaseCharge:    valueobject.NewMoney(req.BaseCharge),
		PenaltyAmount: valueobject.NewMoney(req.PenaltyAmount),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, newBillResponse(bill))
}

// AdjustCredit applies a signed adjustment to a unit's credit balance
func (h *AdminHandler) AdjustCredit(c *gin.Context) {
	clientID, err := getClientID(c)
	if err != nil {
		h.BadRequest(c, "Invalid client ID")
		return
	}

	operatorID, err := getOperatorID(c)
	if err != nil {
		h.BadRequest(c, "Missing or malformed X-Operator-ID header")
		return
	}

	var req AdjustCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	unitID, err := uuid.Parse(req.UnitID)
	if err != nil {
		h.BadRequest(c, "Invalid unit ID format")
		return
	}

	balance, err := h.adminService.AdjustCredit(c.Request.Context(), appbilling.AdjustCreditRequest{
		ClientID:   clientID,
		UnitID:     unitID,
		OperatorID: operatorID,
		Amount:     valueobject.NewMoney(req.Amount),
		Reference:  req.Reference,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, CreditBalanceResponse{
		UnitID:  balance.UnitID.String(),
		Balance: balance.Balance.Int64(),
	})
}

// RegisterRoutes registers admin routes
func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("/admin")
	{
		admin.POST("/bills/:id/corrections", h.CorrectBill)
		admin.POST("/credit-adjustments", h.AdjustCredit)
	}
}
