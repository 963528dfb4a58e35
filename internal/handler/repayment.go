package handler

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/segyhp/pawn-engine/internal/domain"
	"github.com/segyhp/pawn-engine/internal/service"
	"github.com/segyhp/pawn-engine/pkg/response"
)

type RepaymentHandler struct {
	service   *service.RepaymentService
	validator *validator.Validate
	location  *time.Location
}

// NewRepaymentHandler parses date query parameters in loc
func NewRepaymentHandler(service *service.RepaymentService, v *validator.Validate, loc *time.Location) *RepaymentHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &RepaymentHandler{
		service:   service,
		validator: v,
		location:  loc,
	}
}

// CreateRepayment records a payment against the loan in the path
func (h *RepaymentHandler) CreateRepayment(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathUUID(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	var req domain.CreateRepaymentRequest
	req.LoanID = loanID
	if err := decodeAndValidate(r, h.validator, &req); err != nil {
		response.FromError(w, err)
		return
	}
	req.LoanID = loanID

	result, err := h.service.CreateRepayment(r.Context(), &req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, result)
}

func (h *RepaymentHandler) History(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathUUID(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	history, err := h.service.GetRepaymentHistory(r.Context(), loanID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, nonNil(history))
}

func (h *RepaymentHandler) TotalPaid(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathUUID(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	total, err := h.service.GetTotalPaid(r.Context(), loanID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, map[string]interface{}{
		"loan_id":    loanID,
		"total_paid": total,
	})
}

// ByDateRange lists repayments between ?start= and ?end=, both YYYY-MM-DD and inclusive
func (h *RepaymentHandler) ByDateRange(w http.ResponseWriter, r *http.Request) {
	start, err := queryDate(r, "start", h.location)
	if err != nil {
		response.FromError(w, err)
		return
	}
	end, err := queryDate(r, "end", h.location)
	if err != nil {
		response.FromError(w, err)
		return
	}

	repayments, err := h.service.GetRepaymentsByDateRange(r.Context(), start, end)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, nonNil(repayments))
}

func (h *RepaymentHandler) CustomerSummary(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathUUID(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}
	months, err := queryInt(r, "months", 0)
	if err != nil {
		response.FromError(w, err)
		return
	}

	summary, err := h.service.GetCustomerSummary(r.Context(), customerID, months)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, summary)
}

// DailyCollection totals a branch's repayments on ?date=
func (h *RepaymentHandler) DailyCollection(w http.ResponseWriter, r *http.Request) {
	branchID, err := pathUUID(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}
	date, err := queryDate(r, "date", h.location)
	if err != nil {
		response.FromError(w, err)
		return
	}

	report, err := h.service.GetDailyCollection(r.Context(), branchID, date)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, report)
}
