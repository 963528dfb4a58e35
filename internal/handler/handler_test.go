package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segyhp/pawn-engine/internal/clock"
	"github.com/segyhp/pawn-engine/internal/config"
	"github.com/segyhp/pawn-engine/internal/domain"
	"github.com/segyhp/pawn-engine/internal/logger"
	"github.com/segyhp/pawn-engine/internal/metrics"
	"github.com/segyhp/pawn-engine/internal/report"
	"github.com/segyhp/pawn-engine/internal/repository/memory"
	"github.com/segyhp/pawn-engine/internal/scheduler"
	"github.com/segyhp/pawn-engine/internal/service"
	"github.com/segyhp/pawn-engine/internal/statemachine"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

type testServer struct {
	router     *mux.Router
	store      *memory.Store
	customerID uuid.UUID
	branchID   uuid.UUID
	currencyID uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.NewStore()
	clk := clock.NewFixed(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))
	log := logger.Discard()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	cfg := &config.Config{
		Business: config.BusinessConfig{
			MaxLoanToValue:          "0.70",
			OverdueGraceDays:        30,
			DefaultLoanDurationDays: 30,
			DefaultGracePeriodDays:  7,
			UpcomingWindowDays:      7,
			DefaultPenaltyRate:      "1",
		},
	}

	machine := statemachine.NewMachine(store, clk, 30, m, log)
	loans := service.NewLoanService(store, machine, clk, nil, cfg, m, log)
	repayments := service.NewRepaymentService(store, machine, clk, m, log)
	jobs := scheduler.NewJobs(store, machine, clk, report.NewLogPublisher(log), m, log)
	v := NewValidator()

	ts := &testServer{
		router: NewRouter(Router{
			Loans:      NewLoanHandler(loans, v),
			Repayments: NewRepaymentHandler(repayments, v, time.UTC),
			Jobs:       NewJobHandler(jobs),
			Health:     NewHealthHandler(nil, nil, time.Second),
			Metrics:    m,
			Gatherer:   reg,
			Logger:     log,
		}),
		store:      store,
		customerID: uuid.New(),
		branchID:   uuid.New(),
		currencyID: uuid.New(),
	}
	store.AddCustomer(ts.customerID)
	store.AddBranch(ts.branchID)
	store.AddCurrency(ts.currencyID)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func (ts *testServer) addCollateral(t *testing.T, value int64) uuid.UUID {
	t.Helper()
	item := &domain.CollateralItem{
		ID:             uuid.New(),
		CustomerID:     ts.customerID,
		ItemType:       "GOLD",
		EstimatedValue: decimal.NewFromInt(value),
		Status:         domain.CollateralAvailable,
	}
	require.NoError(t, ts.store.Collaterals().Create(context.Background(), item))
	return item.ID
}

func (ts *testServer) loanBody(collateralID uuid.UUID, amount string) map[string]interface{} {
	return map[string]interface{}{
		"customer_id":   ts.customerID,
		"collateral_id": collateralID,
		"branch_id":     ts.branchID,
		"currency_id":   ts.currencyID,
		"loan_amount":   amount,
		"interest_rate": "10",
	}
}

func (ts *testServer) createLoan(t *testing.T) domain.Loan {
	t.Helper()
	code, env := ts.do(t, http.MethodPost, "/api/v1/loans", ts.loanBody(ts.addCollateral(t, 2000), "1000"))
	require.Equal(t, http.StatusCreated, code, env.Message)

	var loan domain.Loan
	require.NoError(t, json.Unmarshal(env.Data, &loan))
	return loan
}

func TestCreateLoan(t *testing.T) {
	ts := newTestServer(t)

	loan := ts.createLoan(t)
	assert.Equal(t, domain.LoanStatusActive, loan.Status)
	assert.True(t, decimal.NewFromInt(1100).Equal(loan.TotalPayableAmount), loan.TotalPayableAmount.String())

	code, env := ts.do(t, http.MethodGet, "/api/v1/loans/"+loan.ID.String(), nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	code, _ = ts.do(t, http.MethodGet, "/api/v1/loans/code/"+loan.LoanCode, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestCreateLoan_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       func(t *testing.T, ts *testServer) interface{}
		wantStatus int
		wantCode   string
	}{
		{
			name: "zero amount fails validation",
			body: func(t *testing.T, ts *testServer) interface{} {
				return ts.loanBody(uuid.New(), "0")
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name: "negative storage fee fails validation",
			body: func(t *testing.T, ts *testServer) interface{} {
				b := ts.loanBody(uuid.New(), "100")
				b["storage_fee"] = "-1"
				return b
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name: "sub-cent amount fails validation",
			body: func(t *testing.T, ts *testServer) interface{} {
				return ts.loanBody(uuid.New(), "1000.005")
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name: "unknown collateral",
			body: func(t *testing.T, ts *testServer) interface{} {
				return ts.loanBody(uuid.New(), "100")
			},
			wantStatus: http.StatusNotFound,
			wantCode:   "ENTITY_NOT_FOUND",
		},
		{
			name: "amount above loan to value",
			body: func(t *testing.T, ts *testServer) interface{} {
				return ts.loanBody(ts.addCollateral(t, 1000), "700.01")
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "LOAN_AMOUNT_EXCEEDS_LIMIT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)

			code, env := ts.do(t, http.MethodPost, "/api/v1/loans", tt.body(t, ts))
			assert.Equal(t, tt.wantStatus, code)
			assert.Equal(t, tt.wantCode, env.Code)
			assert.False(t, env.Success)
		})
	}
}

func TestRepaymentFlow(t *testing.T) {
	ts := newTestServer(t)
	loan := ts.createLoan(t)
	path := "/api/v1/loans/" + loan.ID.String()

	payment := func(principal, interest string) map[string]interface{} {
		p := decimal.RequireFromString(principal)
		i := decimal.RequireFromString(interest)
		return map[string]interface{}{
			"paid_amount":    p.Add(i).String(),
			"principal_paid": principal,
			"interest_paid":  interest,
			"penalty_paid":   "0",
			"currency_id":    ts.currencyID,
			"payment_method": "CASH",
			"payment_type":   "INSTALLMENT",
			"received_by":    "teller-01",
		}
	}

	code, env := ts.do(t, http.MethodPost, path+"/repayments", payment("500", "50"))
	require.Equal(t, http.StatusCreated, code, env.Message)

	var partial domain.CreateRepaymentResponse
	require.NoError(t, json.Unmarshal(env.Data, &partial))
	assert.Equal(t, domain.LoanStatusPartiallyPaid, partial.Loan.Status)
	assert.Equal(t, "550.00", partial.TotalPaid)

	t.Run("overpayment is rejected", func(t *testing.T) {
		code, env := ts.do(t, http.MethodPost, path+"/repayments", payment("600", "0"))
		assert.Equal(t, http.StatusUnprocessableEntity, code)
		assert.Equal(t, "PAYMENT_EXCEEDS_TOTAL", env.Code)
	})

	code, env = ts.do(t, http.MethodPost, path+"/repayments", payment("500", "50"))
	require.Equal(t, http.StatusCreated, code, env.Message)

	var full domain.CreateRepaymentResponse
	require.NoError(t, json.Unmarshal(env.Data, &full))
	assert.Equal(t, domain.LoanStatusRedeemed, full.Loan.Status)

	code, env = ts.do(t, http.MethodGet, path+"/repayments", nil)
	require.Equal(t, http.StatusOK, code)
	var history []domain.Repayment
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Len(t, history, 2)

	t.Run("terminal loan rejects operator events", func(t *testing.T) {
		code, env := ts.do(t, http.MethodPost, path+"/events", map[string]string{"event": "MANUAL_CANCEL"})
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "INVALID_TRANSITION", env.Code)
	})
}

func TestQueries(t *testing.T) {
	ts := newTestServer(t)
	loan := ts.createLoan(t)

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"schedule", "/api/v1/loans/" + loan.ID.String() + "/schedule", http.StatusOK},
		{"balance", "/api/v1/loans/" + loan.ID.String() + "/balance", http.StatusOK},
		{"total paid", "/api/v1/loans/" + loan.ID.String() + "/total-paid", http.StatusOK},
		{"by status", "/api/v1/loans?status=ACTIVE", http.StatusOK},
		{"missing status", "/api/v1/loans", http.StatusBadRequest},
		{"unknown status", "/api/v1/loans?status=LOST", http.StatusBadRequest},
		{"customer loans", "/api/v1/customers/" + ts.customerID.String() + "/loans", http.StatusOK},
		{"upcoming", "/api/v1/loans/upcoming?days=60", http.StatusOK},
		{"bad days", "/api/v1/loans/upcoming?days=soon", http.StatusBadRequest},
		{"unknown loan", "/api/v1/loans/" + uuid.NewString(), http.StatusNotFound},
		{"date range", "/api/v1/repayments?start=2024-01-01&end=2024-01-31", http.StatusOK},
		{"reversed range", "/api/v1/repayments?start=2024-02-01&end=2024-01-31", http.StatusBadRequest},
		{"bad date", "/api/v1/repayments?start=01/01/2024&end=2024-01-31", http.StatusBadRequest},
		{"customer summary", "/api/v1/customers/" + ts.customerID.String() + "/repayment-summary?months=3", http.StatusOK},
		{"unknown customer summary", "/api/v1/customers/" + uuid.NewString() + "/repayment-summary", http.StatusNotFound},
		{"branch collections", "/api/v1/branches/" + ts.branchID.String() + "/collections?date=2024-01-15", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := ts.do(t, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.wantStatus, code, env.Message)
		})
	}
}

func TestJobs(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, http.MethodPost, "/api/v1/jobs/detect_overdue/run", nil)
	require.Equal(t, http.StatusOK, code)

	var result scheduler.JobResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, scheduler.JobDetectOverdue, result.Job)

	code, env = ts.do(t, http.MethodPost, "/api/v1/jobs/reticulate/run", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "ENTITY_NOT_FOUND", env.Code)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, "disabled", status.Checks["database"])
	assert.Equal(t, "disabled", status.Checks["redis"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodGet, "/health", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `pawn_http_requests_total{method="GET",route="/health",status="200"} 1`))
}

func TestValidator_DecimalTags(t *testing.T) {
	type payload struct {
		Amount decimal.Decimal `validate:"decimal_gt=0,decimal_scale=2"`
		Fee    decimal.Decimal `validate:"decimal_gte=0,decimal_scale=2"`
	}
	v := NewValidator()

	tests := []struct {
		name    string
		amount  string
		fee     string
		wantErr bool
	}{
		{"positive amount zero fee", "0.01", "0", false},
		{"zero amount", "0", "0", true},
		{"sub-cent amount", "0.004", "0", true},
		{"sub-cent fee", "10", "0.001", true},
		{"negative fee", "10", "-0.01", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(payload{
				Amount: decimal.RequireFromString(tt.amount),
				Fee:    decimal.RequireFromString(tt.fee),
			})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
