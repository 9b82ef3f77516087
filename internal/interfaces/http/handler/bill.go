package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appbilling "github.com/propman/backend/internal/application/billing"
	"github.com/propman/backend/internal/domain/billing"
)

// BillHandler handles bill generation and lookup endpoints
type BillHandler struct {
	BaseHandler
	billingService *appbilling.BillingService
}

// NewBillHandler creates a new BillHandler
func NewBillHandler(billingService *appbilling.BillingService) *BillHandler {
	return &BillHandler{billingService: billingService}
}

// GenerateBillRequest is the request body for generating a bill from a
// stored meter reading
type GenerateBillRequest struct {
	UnitID      string `json:"unit_id" binding:"required,uuid"`
	FiscalYear  int    `json:"fiscal_year" binding:"required,gte=1900"`
	FiscalMonth int    `json:"fiscal_month" binding:"min=0,max=11"`
	// Recompute replaces the charge of an existing unpaid bill instead
	// of rejecting the duplicate period.
	Recompute bool `json:"recompute"`
}

// PenaltyRunRequest is the request body for a penalty accrual run
type PenaltyRunRequest struct {
	// AsOf is the accrual cutoff in RFC 3339; defaults to now.
	AsOf string `json:"as_of" binding:"omitempty"`
}

// PaymentRecordResponse represents one applied payment on a bill
type PaymentRecordResponse struct {
	TransactionID string    `json:"transaction_id"`
	Amount        int64     `json:"amount"`
	BasePaid      int64     `json:"base_paid"`
	PenaltyPaid   int64     `json:"penalty_paid"`
	CreditDrawn   int64     `json:"credit_drawn"`
	AppliedAt     time.Time `json:"applied_at"`
}

// CorrectionRecordResponse represents one administrative correction on a bill
type CorrectionRecordResponse struct {
	OperatorID    string    `json:"operator_id"`
	Reason        string    `json:"reason"`
	BaseBefore    int64     `json:"base_before"`
	BaseAfter     int64     `json:"base_after"`
	PenaltyBefore int64     `json:"penalty_before"`
	PenaltyAfter  int64     `json:"penalty_after"`
	CorrectedAt   time.Time `json:"corrected_at"`
}

// BillResponse represents a bill in API responses. Monetary amounts are
// whole minor units.
type BillResponse struct {
	ID                 string                     `json:"id"`
	UnitID             string                     `json:"unit_id"`
	FiscalYear         int                        `json:"fiscal_year"`
	FiscalMonth        int                        `json:"fiscal_month"`
	Consumption        string                     `json:"consumption"`
	RatePerUnit        int64                      `json:"rate_per_unit"`
	BaseCharge         int64                      `json:"base_charge"`
	PenaltyAmount      int64                      `json:"penalty_amount"`
	PaidAmount         int64                      `json:"paid_amount"`
	BasePaid           int64                      `json:"base_paid"`
	PenaltyPaid        int64                      `json:"penalty_paid"`
	OutstandingBase    int64                      `json:"outstanding_base"`
	OutstandingPenalty int64                      `json:"outstanding_penalty"`
	Status             string                     `json:"status"`
	PenaltyApplied     bool                       `json:"penalty_applied"`
	DueDate            time.Time                  `json:"due_date"`
	PaidAt             *time.Time                 `json:"paid_at,omitempty"`
	Payments           []PaymentRecordResponse    `json:"payments"`
	Corrections        []CorrectionRecordResponse `json:"corrections,omitempty"`
	Version            int                        `json:"version"`
	CreatedAt          time.Time                  `json:"created_at"`
	UpdatedAt          time.Time                  `json:"updated_at"`
}

func newBillResponse(b *billing.Bill) BillResponse {
	payments := make([]PaymentRecordResponse, len(b.Payments))
	for i, p := range b.Payments {
		payments[i] = PaymentRecordResponse{
			TransactionID: p.TransactionID,
			Amount:        p.Amount.Int64(),
			BasePaid:      p.BaseChargePaid.Int64(),
			PenaltyPaid:   p.PenaltyPaid.Int64(),
			CreditDrawn:   p.CreditDrawn().Int64(),
			AppliedAt:     p.AppliedAt,
		}
	}
	var corrections []CorrectionRecordResponse
	for _, cr := range b.Corrections {
		corrections = append(corrections, CorrectionRecordResponse{
			OperatorID:    cr.OperatorID.String(),
			Reason:        cr.Reason,
			BaseBefore:    cr.BaseBefore.Int64(),
			BaseAfter:     cr.BaseAfter.Int64(),
			PenaltyBefore: cr.PenaltyBefore.Int64(),
			PenaltyAfter:  cr.PenaltyAfter.Int64(),
			CorrectedAt:   cr.CorrectedAt,
		})
	}

	return BillResponse{
		ID:                 b.ID.String(),
		UnitID:             b.UnitID.String(),
		FiscalYear:         b.Period.Year,
		FiscalMonth:        b.Period.Month,
		Consumption:        b.Consumption,
		RatePerUnit:        b.RatePerUnit.Int64(),
		BaseCharge:         b.BaseCharge.Int64(),
		PenaltyAmount:      b.PenaltyAmount.Int64(),
		PaidAmount:         b.PaidAmount.Int64(),
		BasePaid:           b.BasePaid.Int64(),
		PenaltyPaid:        b.PenaltyPaid.Int64(),
		OutstandingBase:    b.OutstandingBase().Int64(),
		OutstandingPenalty: b.OutstandingPenalty().Int64(),
		Status:             b.Status.String(),
		PenaltyApplied:     b.PenaltyApplied,
		DueDate:            b.DueDate,
		PaidAt:             b.PaidAt,
		Payments:           payments,
		Corrections:        corrections,
		Version:            b.Version,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
}

// Generate creates the bill for a unit and period from its meter reading
func (h *BillHandler) Generate(c *gin.Context) {
	clientID, err := getClientID(c)
	if err != nil {
		h.BadRequest(c, "Invalid client ID")
		return
	}

	var req GenerateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	unitID, err := uuid.Parse(req.UnitID)
	if err != nil {
		h.BadRequest(c, "Invalid unit ID format")
		return
	}

	period, err := billing.NewFiscalPeriod(req.FiscalYear, req.FiscalMonth)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	bill, err := h.billingService.GenerateBill(c.Request.Context(), appbilling.GenerateBillRequest{
		ClientID:  clientID,
		UnitID:    unitID,
		Period:    period,
		Recompute: req.Recompute,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, newBillResponse(bill))
}

// Get returns one bill by ID
func (h *BillHandler) Get(c *gin.Context) {
	clientID, err := getClientID(c)
	if err != nil {
		h.BadRequest(c, "Invalid client ID")
		return
	}

	billID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid bill ID format")
		return
	}

	bill, err := h.billingService.GetBill(c.Request.Context(), clientID, billID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, newBillResponse(bill))
}

// RunPenalties accrues penalties over every past-due unsettled bill of
// the client
func (h *BillHandler) RunPenalties(c *gin.Context) {
	clientID, err := getClientID(c)
	if err != nil {
		h.BadRequest(c, "Invalid client ID")
		return
	}

	var req PenaltyRunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	asOf := time.Now()
	if req.AsOf != "" {
		parsed, err := time.Parse(time.RFC3339, req.AsOf)
		if err != nil {
			h.BadRequest(c, "Invalid as_of timestamp, expected RFC 3339")
			return
		}
		asOf = parsed
	}

	result, err := h.billingService.ApplyPenalties(c.Request.Context(), clientID, asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// RegisterRoutes registers bill routes
func (h *BillHandler) RegisterRoutes(rg *gin.RouterGroup) {
	bills := rg.Group("/bills")
	{
		bills.POST("", h.Generate)
		bills.GET("/:id", h.Get)
	}
	rg.POST("/penalty-runs", h.RunPenalties)
}
