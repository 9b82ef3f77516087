package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appbilling "github.com/propman/backend/internal/application/billing"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/shopspring/decimal"
)

// ReadingHandler handles meter reading ingestion endpoints
type ReadingHandler struct {
	BaseHandler
	billingService *appbilling.BillingService
}

// NewReadingHandler creates a new ReadingHandler
func NewReadingHandler(billingService *appbilling.BillingService) *ReadingHandler {
	return &ReadingHandler{billingService: billingService}
}

// RecordReadingRequest is the request body for submitting a meter reading.
// Readings are decimal strings so meter precision survives transport.
type RecordReadingRequest struct {
	UnitID         string  `json:"unit_id" binding:"required,uuid"`
	FiscalYear     int     `json:"fiscal_year" binding:"required,gte=1900"`
	FiscalMonth    int     `json:"fiscal_month" binding:"min=0,max=11"`
	CurrentReading string  `json:"current_reading" binding:"required"`
	PriorReading   *string `json:"prior_reading"`
}

// ReadingResponse represents a meter reading in API responses
type ReadingResponse struct {
	ID             string `json:"id"`
	UnitID         string `json:"unit_id"`
	FiscalYear     int    `json:"fiscal_year"`
	FiscalMonth    int    `json:"fiscal_month"`
	CurrentReading string `json:"current_reading"`
	PriorReading   string `json:"prior_reading"`
	Consumption    string `json:"consumption"`
	Billed         bool   `json:"billed"`
}

func newReadingResponse(r *billing.MeterReading) ReadingResponse {
	return ReadingResponse{
		ID:             r.ID.String(),
		UnitID:         r.UnitID.String(),
		FiscalYear:     r.Period.Year,
		FiscalMonth:    r.Period.Month,
		CurrentReading: r.CurrentReading.String(),
		PriorReading:   r.PriorReading.String(),
		Consumption:    r.Consumption().String(),
		Billed:         r.Billed,
	}
}

// Record submits a meter reading for a unit and fiscal period
func (h *ReadingHandler) Record(c *gin.Context) {
	clientID, err := getClientID(c)
	if err != nil {
		h.BadRequest(c, "Invalid client ID")
		return
	}

	var req RecordReadingRequest
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

	current, err := decimal.NewFromString(req.CurrentReading)
	if err != nil {
		h.BadRequest(c, "Invalid current reading")
		return
	}

	var prior *decimal.Decimal
	if req.PriorReading != nil {
		p, err := decimal.NewFromString(*req.PriorReading)
		if err != nil {
			h.BadRequest(c, "Invalid prior reading")
			return
		}
		prior = &p
	}

	reading, err := h.billingService.RecordReading(c.Request.Context(), appbilling.RecordReadingRequest{
		ClientID:       clientID,
		UnitID:         unitID,
		Period:         period,
		CurrentReading: current,
		PriorReading:   prior,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, newReadingResponse(reading))
}

// RegisterRoutes registers reading routes
func (h *ReadingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	readings := rg.Group("/readings")
	{
		readings.POST("", h.Record)
	}
}
