package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appbilling "github.com/propman/backend/internal/application/billing"
)

// YearViewHandler handles the aggregated year view and statement endpoints
type YearViewHandler struct {
	BaseHandler
	yearViewService  *appbilling.YearViewService
	statementService *appbilling.StatementService
}

// NewYearViewHandler creates a new YearViewHandler
func NewYearViewHandler(yearViewService *appbilling.YearViewService, statementService *appbilling.StatementService) *YearViewHandler {
	return &YearViewHandler{
		yearViewService:  yearViewService,
		statementService: statementService,
	}
}

// LastUpdatedResponse carries the staleness marker for a fiscal year
type LastUpdatedResponse struct {
	FiscalYear  int        `json:"fiscal_year"`
	LastUpdated *time.Time `json:"last_updated"`
}

func (h *YearViewHandler) parseUnitAndYear(c *gin.Context) (uuid.UUID, int, bool) {
	unitID, err := uuid.Parse(c.Param("unitId"))
	if err != nil {
		h.BadRequest(c, "Invalid unit ID format")
		return uuid.Nil, 0, false
	}
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 1900 {
		h.BadRequest(c, "Invalid fiscal year")
		return uuid.Nil, 0, false
	}
	return unitID, year, true
}

// Get returns the twelve-month aggregated view for a unit's fiscal year
func (h *YearViewHandler) Get(c *gin.Context) {
	clientID, err := getClientID(c)
	if err != nil {
		h.BadRequest(c, "Invalid client ID")
		return
	}
	unitID, year, ok := h.parseUnitAndYear(c)
	if !ok {
		return
	}

	view, err := h.yearViewService.GetYearView(c.Request.Context(), clientID, unitID, year)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, view)
}

// GetClientView returns the aggregated year view spanning every unit of
// the client, including meter reading data for unbilled months
func (h *YearViewHandler) GetClientView(c *gin.Context) {
	clientID, err := getClientID(c)
	if err != nil {
		h.BadRequest(c, "Invalid client ID")
		return
	}
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 1900 {
		h.BadRequest(c, "Invalid fiscal year")
		return
	}

	view, err := h.yearViewService.GetClientYearView(c.Request.Context(), clientID, year)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, view)
}

// Statement returns the chronological charge and payment statement for a
// unit's fiscal year
func (h *YearViewHandler) Statement(c *gin.Context) {
	clientID, err := getClientID(c)
	if err != nil {
		h.BadRequest(c, "Invalid client ID")
		return
	}
	unitID, year, ok := h.parseUnitAndYear(c)
	if !ok {
		return
	}

	statement, err := h.statementService.GenerateStatement(c.Request.Context(), clientID, unitID, year)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, statement)
}

// LastUpdated returns the client-wide staleness marker for a fiscal year.
// A null last_updated means no billing activity has been recorded for
// the year.
func (h *YearViewHandler) LastUpdated(c *gin.Context) {
	clientID, err := getClientID(c)
	if err != nil {
		h.BadRequest(c, "Invalid client ID")
		return
	}
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 1900 {
		h.BadRequest(c, "Invalid fiscal year")
		return
	}

	lastUpdated, err := h.yearViewService.GetLastUpdated(c.Request.Context(), clientID, year)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := LastUpdatedResponse{FiscalYear: year}
	if !lastUpdated.IsZero() {
		resp.LastUpdated = &lastUpdated
	}
	h.Success(c, resp)
}

// InvalidateCache drops the cached year view for a unit's fiscal year
func (h *YearViewHandler) InvalidateCache(c *gin.Context) {
	clientID, err := getClientID(c)
	if err != nil {
		h.BadRequest(c, "Invalid client ID")
		return
	}
	unitID, year, ok := h.parseUnitAndYear(c)
	if !ok {
		return
	}

	if err := h.yearViewService.InvalidateYearView(c.Request.Context(), clientID, unitID, year); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// RegisterRoutes registers year view routes
func (h *YearViewHandler) RegisterRoutes(rg *gin.RouterGroup) {
	units := rg.Group("/units/:unitId/years/:year")
	{
		units.GET("", h.Get)
		units.GET("/statement", h.Statement)
		units.DELETE("/cache", h.InvalidateCache)
	}
	rg.GET("/years/:year", h.GetClientView)
	rg.GET("/years/:year/last-updated", h.LastUpdated)
}
