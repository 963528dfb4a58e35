package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segyhp/pawn-engine/internal/metrics"
	"github.com/segyhp/pawn-engine/pkg/response"
)

const uuidPattern = "[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}"

// Router bundles what NewRouter mounts. Jobs and Gatherer are optional.
type Router struct {
	Loans      *LoanHandler
	Repayments *RepaymentHandler
	Jobs       *JobHandler
	Health     *HealthHandler
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
	Logger     *slog.Logger
}

func NewRouter(rt Router) *mux.Router {
	if rt.Logger == nil {
		rt.Logger = slog.Default()
	}

	router := mux.NewRouter()
	router.Use(response.CORSMiddleware, response.LoggingMiddleware(rt.Logger), metricsMiddleware(rt.Metrics))

	// Health check
	router.HandleFunc("/health", rt.Health.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", rt.Health.Ready).Methods(http.MethodGet)

	if rt.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(rt.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	id := "{id:" + uuidPattern + "}"

	api.HandleFunc("/loans", rt.Loans.CreateLoan).Methods(http.MethodPost)
	api.HandleFunc("/loans", rt.Loans.ListLoans).Methods(http.MethodGet)
	api.HandleFunc("/loans/upcoming", rt.Loans.Upcoming).Methods(http.MethodGet)
	api.HandleFunc("/loans/code/{code}", rt.Loans.GetLoanByCode).Methods(http.MethodGet)
	api.HandleFunc("/loans/"+id, rt.Loans.GetLoan).Methods(http.MethodGet)
	api.HandleFunc("/loans/"+id+"/schedule", rt.Loans.GetSchedule).Methods(http.MethodGet)
	api.HandleFunc("/loans/"+id+"/balance", rt.Loans.GetBalance).Methods(http.MethodGet)
	api.HandleFunc("/loans/"+id+"/events", rt.Loans.ApplyEvent).Methods(http.MethodPost)
	api.HandleFunc("/customers/"+id+"/loans", rt.Loans.ListCustomerLoans).Methods(http.MethodGet)

	api.HandleFunc("/loans/"+id+"/repayments", rt.Repayments.CreateRepayment).Methods(http.MethodPost)
	api.HandleFunc("/loans/"+id+"/repayments", rt.Repayments.History).Methods(http.MethodGet)
	api.HandleFunc("/loans/"+id+"/total-paid", rt.Repayments.TotalPaid).Methods(http.MethodGet)
	api.HandleFunc("/repayments", rt.Repayments.ByDateRange).Methods(http.MethodGet)
	api.HandleFunc("/customers/"+id+"/repayment-summary", rt.Repayments.CustomerSummary).Methods(http.MethodGet)
	api.HandleFunc("/branches/"+id+"/collections", rt.Repayments.DailyCollection).Methods(http.MethodGet)

	if rt.Jobs != nil {
		api.HandleFunc("/jobs/{job}/run", rt.Jobs.Run).Methods(http.MethodPost)
	}

	return router
}

// metricsMiddleware labels requests by route template so ids do not explode cardinality
func metricsMiddleware(m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := response.NewRecorder(w)

			next.ServeHTTP(recorder, r)

			route := "unmatched"
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			m.HTTPRequest(r.Method, route, strconv.Itoa(recorder.StatusCode), time.Since(start).Seconds())
		})
	}
}
