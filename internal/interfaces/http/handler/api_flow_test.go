package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appbilling "github.com/propman/backend/internal/application/billing"
	appcredit "github.com/propman/backend/internal/application/credit"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/propman/backend/internal/domain/shared/valueobject"
	"github.com/propman/backend/internal/infrastructure/cache"
	"github.com/propman/backend/internal/infrastructure/persistence"
	"github.com/propman/backend/internal/infrastructure/persistence/models"
	"github.com/propman/backend/internal/interfaces/http/dto"
	"github.com/propman/backend/internal/interfaces/http/middleware"
	"github.com/propman/backend/internal/interfaces/http/router"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// apiResponse mirrors the response envelope with raw data for per-test decoding
type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

// setupAPI wires the full handler stack against an in-memory SQLite
// database, mirroring the production composition without the HTTP server.
func setupAPI(t *testing.T) *gin.Engine {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.BillModel{},
		&models.MeterReadingModel{},
		&models.YearMarkerModel{},
		&models.CreditBalanceModel{},
		&models.CreditTransactionModel{},
	))

	uow := persistence.NewGormUnitOfWork(db)
	billRepo := persistence.NewGormBillRepository(db)
	readingRepo := persistence.NewGormMeterReadingRepository(db)
	markerRepo := persistence.NewGormYearMarkerRepository(db)
	balanceRepo := persistence.NewGormCreditBalanceRepository(db)
	txnRepo := persistence.NewGormCreditTransactionRepository(db)

	policies := appbilling.NewStaticPolicyProvider(billing.Policy{
		FiscalStartMonth: time.July,
		RatePerUnit:      valueobject.NewMoney(5000),
		PenaltyRate:      decimal.NewFromFloat(0.05),
		DueDayOffset:     14,
		PenaltyAccrual:   billing.AccrualSimple,
	})

	billingService := appbilling.NewBillingService(uow, policies)
	allocationService := appbilling.NewAllocationService(uow)
	adminService := appbilling.NewAdminService(uow)
	yearViewService := appbilling.NewYearViewService(billRepo, readingRepo, markerRepo, cache.NewInMemoryYearViewCache(time.Minute))
	statementService := appbilling.NewStatementService(billRepo, balanceRepo)
	creditService := appcredit.NewCreditQueryService(balanceRepo, txnRepo)

	engine := gin.New()
	r := router.NewRouter(engine,
		router.WithAPIVersion("v1"),
		router.WithMiddleware(middleware.ClientScope()),
	)
	r.Register(NewReadingHandler(billingService)).
		Register(NewBillHandler(billingService)).
		Register(NewPaymentHandler(allocationService)).
		Register(NewYearViewHandler(yearViewService, statementService)).
		Register(NewCreditHandler(creditService)).
		Register(NewAdminHandler(adminService))
	r.Setup()

	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, clientID uuid.UUID, body any, headers map[string]string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if clientID != uuid.Nil {
		req.Header.Set(middleware.ClientIDHeader, clientID.String())
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var resp apiResponse
	if len(w.Body.Bytes()) > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func recordAndBill(t *testing.T, engine *gin.Engine, clientID, unitID uuid.UUID, year, month int, current string) BillResponse {
	t.Helper()

	w, _ := doJSON(t, engine, "POST", "/api/v1/readings", clientID, gin.H{
		"unit_id":         unitID.String(),
		"fiscal_year":     year,
		"fiscal_month":    month,
		"current_reading": current,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w, resp := doJSON(t, engine, "POST", "/api/v1/bills", clientID, gin.H{
		"unit_id":      unitID.String(),
		"fiscal_year":  year,
		"fiscal_month": month,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var bill BillResponse
	require.NoError(t, json.Unmarshal(resp.Data, &bill))
	return bill
}

func TestAPI_RequiresClientScope(t *testing.T) {
	engine := setupAPI(t)

	w, resp := doJSON(t, engine, "POST", "/api/v1/readings", uuid.Nil, gin.H{}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestAPI_ReadingToBill(t *testing.T) {
	engine := setupAPI(t)
	clientID := uuid.New()
	unitID := uuid.New()

	bill := recordAndBill(t, engine, clientID, unitID, 2026, 0, "20")

	assert.Equal(t, unitID.String(), bill.UnitID)
	assert.Equal(t, 2026, bill.FiscalYear)
	assert.Equal(t, 0, bill.FiscalMonth)
	assert.Equal(t, "20", bill.Consumption)
	assert.Equal(t, int64(100000), bill.BaseCharge)
	assert.Equal(t, "UNPAID", bill.Status)

	t.Run("duplicate period rejected", func(t *testing.T) {
		w, resp := doJSON(t, engine, "POST", "/api/v1/bills", clientID, gin.H{
			"unit_id":      unitID.String(),
			"fiscal_year":  2026,
			"fiscal_month": 0,
		}, nil)

		assert.Equal(t, http.StatusConflict, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "DUPLICATE_PERIOD", resp.Error.Code)
	})

	t.Run("fetch by ID", func(t *testing.T) {
		w, resp := doJSON(t, engine, "GET", "/api/v1/bills/"+bill.ID, clientID, nil, nil)

		require.Equal(t, http.StatusOK, w.Code)
		var fetched BillResponse
		require.NoError(t, json.Unmarshal(resp.Data, &fetched))
		assert.Equal(t, bill.ID, fetched.ID)
		assert.Equal(t, int64(100000), fetched.OutstandingBase)
	})

	t.Run("other client cannot see the bill", func(t *testing.T) {
		w, resp := doJSON(t, engine, "GET", "/api/v1/bills/"+bill.ID, uuid.New(), nil, nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	})
}

func TestAPI_PaymentAllocation(t *testing.T) {
	engine := setupAPI(t)
	clientID := uuid.New()
	unitID := uuid.New()

	recordAndBill(t, engine, clientID, unitID, 2026, 0, "20")

	w, resp := doJSON(t, engine, "POST", "/api/v1/payments", clientID, gin.H{
		"transaction_id": "TXN-API-001",
		"unit_id":        unitID.String(),
		"amount":         60000,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var result appbilling.AllocationResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, "TXN-API-001", result.TransactionID)
	require.Len(t, result.Allocations, 1)
	assert.Equal(t, valueobject.NewMoney(60000), result.Allocations[0].BasePaid)
	assert.Equal(t, billing.BillStatusPartial, result.Allocations[0].Status)
	assert.Equal(t, valueobject.NewMoney(60000), result.TotalCashApplied)

	t.Run("surplus lands in credit", func(t *testing.T) {
		w, _ := doJSON(t, engine, "POST", "/api/v1/payments", clientID, gin.H{
			"transaction_id": "TXN-API-002",
			"unit_id":        unitID.String(),
			"amount":         50000,
		}, nil)
		require.Equal(t, http.StatusCreated, w.Code)

		w, resp := doJSON(t, engine, "GET", fmt.Sprintf("/api/v1/units/%s/credit", unitID), clientID, nil, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var balance CreditBalanceResponse
		require.NoError(t, json.Unmarshal(resp.Data, &balance))
		assert.Equal(t, int64(10000), balance.Balance)
	})

	t.Run("credit history is paginated newest first", func(t *testing.T) {
		w, resp := doJSON(t, engine, "GET", fmt.Sprintf("/api/v1/units/%s/credit/history?page=1&page_size=10", unitID), clientID, nil, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var items []CreditTransactionResponse
		require.NoError(t, json.Unmarshal(resp.Data, &items))
		require.NotEmpty(t, items)
		assert.Equal(t, "DEPOSIT", items[0].Type)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(len(items)), resp.Meta.Total)
	})

	t.Run("unknown unit rejected", func(t *testing.T) {
		w, resp := doJSON(t, engine, "POST", "/api/v1/payments", clientID, gin.H{
			"transaction_id": "TXN-API-003",
			"unit_id":        uuid.New().String(),
			"amount":         1000,
		}, nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "UNIT_NOT_FOUND", resp.Error.Code)
	})
}

func TestAPI_YearViewAndStatement(t *testing.T) {
	engine := setupAPI(t)
	clientID := uuid.New()
	unitID := uuid.New()

	recordAndBill(t, engine, clientID, unitID, 2026, 0, "20")
	recordAndBill(t, engine, clientID, unitID, 2026, 1, "50")

	w, resp := doJSON(t, engine, "GET", fmt.Sprintf("/api/v1/units/%s/years/2026", unitID), clientID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var view appbilling.YearView
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	assert.Equal(t, 2026, view.FiscalYear)
	require.Len(t, view.Months, 12)
	assert.Equal(t, valueobject.NewMoney(100000), view.Months[0].BaseCharge)
	assert.Equal(t, valueobject.NewMoney(150000), view.Months[1].BaseCharge)
	assert.Equal(t, valueobject.NewMoney(250000), view.Totals.Charged)
	assert.False(t, view.LastUpdated.IsZero())

	t.Run("statement lists charges chronologically", func(t *testing.T) {
		w, resp := doJSON(t, engine, "GET", fmt.Sprintf("/api/v1/units/%s/years/2026/statement", unitID), clientID, nil, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var statement appbilling.Statement
		require.NoError(t, json.Unmarshal(resp.Data, &statement))
		assert.Equal(t, 2026, statement.FiscalYear)
		require.Len(t, statement.Lines, 2)
		assert.Equal(t, valueobject.NewMoney(250000), statement.TotalCharged)
	})

	t.Run("last updated marker is set", func(t *testing.T) {
		w, resp := doJSON(t, engine, "GET", "/api/v1/years/2026/last-updated", clientID, nil, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var marker LastUpdatedResponse
		require.NoError(t, json.Unmarshal(resp.Data, &marker))
		assert.Equal(t, 2026, marker.FiscalYear)
		require.NotNil(t, marker.LastUpdated)
	})

	t.Run("marker is null for a quiet year", func(t *testing.T) {
		w, resp := doJSON(t, engine, "GET", "/api/v1/years/2031/last-updated", clientID, nil, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var marker LastUpdatedResponse
		require.NoError(t, json.Unmarshal(resp.Data, &marker))
		assert.Nil(t, marker.LastUpdated)
	})

	t.Run("cache invalidation returns no content", func(t *testing.T) {
		w, _ := doJSON(t, engine, "DELETE", fmt.Sprintf("/api/v1/units/%s/years/2026/cache", unitID), clientID, nil, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestAPI_AdminEndpoints(t *testing.T) {
	engine := setupAPI(t)
	clientID := uuid.New()
	unitID := uuid.New()
	operatorID := uuid.New()

	bill := recordAndBill(t, engine, clientID, unitID, 2026, 0, "20")

	t.Run("correction requires operator header", func(t *testing.T) {
		w, resp := doJSON(t, engine, "POST", "/api/v1/admin/bills/"+bill.ID+"/corrections", clientID, gin.H{
			"reason":         "meter misread",
			"base_charge":    90000,
			"penalty_amount": 0,
		}, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, resp.Error)
	})

	t.Run("correction amends the bill", func(t *testing.T) {
		w, resp := doJSON(t, engine, "POST", "/api/v1/admin/bills/"+bill.ID+"/corrections", clientID, gin.H{
			"reason":         "meter misread",
			"base_charge":    90000,
			"penalty_amount": 0,
		}, map[string]string{"X-Operator-ID": operatorID.String()})
		require.Equal(t, http.StatusOK, w.Code)

		var corrected BillResponse
		require.NoError(t, json.Unmarshal(resp.Data, &corrected))
		assert.Equal(t, int64(90000), corrected.BaseCharge)
		require.Len(t, corrected.Corrections, 1)
		assert.Equal(t, operatorID.String(), corrected.Corrections[0].OperatorID)
		assert.Equal(t, int64(100000), corrected.Corrections[0].BaseBefore)
		assert.Equal(t, int64(90000), corrected.Corrections[0].BaseAfter)
	})

	t.Run("credit adjustment creates balance", func(t *testing.T) {
		w, resp := doJSON(t, engine, "POST", "/api/v1/admin/credit-adjustments", clientID, gin.H{
			"unit_id":   unitID.String(),
			"amount":    25000,
			"reference": "goodwill",
		}, map[string]string{"X-Operator-ID": operatorID.String()})
		require.Equal(t, http.StatusOK, w.Code)

		var balance CreditBalanceResponse
		require.NoError(t, json.Unmarshal(resp.Data, &balance))
		assert.Equal(t, int64(25000), balance.Balance)
	})

	t.Run("negative adjustment below zero rejected", func(t *testing.T) {
		w, resp := doJSON(t, engine, "POST", "/api/v1/admin/credit-adjustments", clientID, gin.H{
			"unit_id": unitID.String(),
			"amount":  -99999999,
		}, map[string]string{"X-Operator-ID": operatorID.String()})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "INSUFFICIENT_CREDIT", resp.Error.Code)
	})
}

func TestAPI_PenaltyRun(t *testing.T) {
	engine := setupAPI(t)
	clientID := uuid.New()
	unitID := uuid.New()

	// FY2026 month 0 starts July 2025, due mid-July 2025
	recordAndBill(t, engine, clientID, unitID, 2026, 0, "20")

	w, resp := doJSON(t, engine, "POST", "/api/v1/penalty-runs", clientID, gin.H{
		"as_of": "2025-09-01T00:00:00Z",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var result appbilling.PenaltyRunResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, 1, result.BillsExamined)
	assert.Equal(t, 1, result.BillsAccrued)

	t.Run("rerun does not double charge", func(t *testing.T) {
		w, resp := doJSON(t, engine, "POST", "/api/v1/penalty-runs", clientID, gin.H{
			"as_of": "2025-10-01T00:00:00Z",
		}, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var rerun appbilling.PenaltyRunResult
		require.NoError(t, json.Unmarshal(resp.Data, &rerun))
		assert.Equal(t, 0, rerun.BillsAccrued)
	})
}
