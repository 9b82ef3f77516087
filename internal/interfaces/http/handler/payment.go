package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appbilling "github.com/propman/backend/internal/application/billing"
	"github.com/propman/backend/internal/domain/shared/valueobject"
)

// PaymentHandler handles payment ingestion and cascade allocation
type PaymentHandler struct {
	BaseHandler
	allocationService *appbilling.AllocationService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(allocationService *appbilling.AllocationService) *PaymentHandler {
	return &PaymentHandler{allocationService: allocationService}
}

// ProcessPaymentRequest is the request body for recording a payment.
// Amount is in whole minor units.
type ProcessPaymentRequest struct {
	TransactionID string `json:"transaction_id" binding:"required,max=100"`
	UnitID        string `json:"unit_id" binding:"required,uuid"`
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	// PaidAt is the payment timestamp in RFC 3339; defaults to now.
	PaidAt string `json:"paid_at" binding:"omitempty"`
}

// Process records a payment and allocates it across the unit's
// outstanding bills, oldest first
func (h *PaymentHandler) Process(c *gin.Context) {
	clientID, err := getClientID(c)
	if err != nil {
		h.BadRequest(c, "Invalid client ID")
		return
	}

	var req ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	unitID, err := uuid.Parse(req.UnitID)
	if err != nil {
		h.BadRequest(c, "Invalid unit ID format")
		return
	}

	paidAt := time.Now()
	if req.PaidAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.PaidAt)
		if err != nil {
			h.BadRequest(c, "Invalid paid_at timestamp, expected RFC 3339")
			return
		}
		paidAt = parsed
	}

	result, err := h.allocationService.ProcessPayment(c.Request.Context(), appbilling.ProcessPaymentRequest{
		ClientID:      clientID,
		UnitID:        unitID,
		TransactionID: req.TransactionID,
		Amount:        valueobject.NewMoney(req.Amount),
		PaidAt:        paidAt,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// RegisterRoutes registers payment routes
func (h *PaymentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	payments := rg.Group("/payments")
	{
		payments.POST("", h.Process)
	}
}
