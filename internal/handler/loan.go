package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/segyhp/pawn-engine/internal/domain"
	"github.com/segyhp/pawn-engine/internal/service"
	customError "github.com/segyhp/pawn-engine/pkg/errors"
	"github.com/segyhp/pawn-engine/pkg/response"
)

type LoanHandler struct {
	service   *service.LoanService
	validator *validator.Validate
}

func NewLoanHandler(service *service.LoanService, v *validator.Validate) *LoanHandler {
	return &LoanHandler{
		service:   service,
		validator: v,
	}
}

// CreateLoan issues a new loan against an available collateral item
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLoanRequest
	if err := decodeAndValidate(r, h.validator, &req); err != nil {
		response.FromError(w, err)
		return
	}

	loan, err := h.service.CreateLoan(r.Context(), &req)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, loan)
}

func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	loan, err := h.service.GetLoan(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, loan)
}

func (h *LoanHandler) GetLoanByCode(w http.ResponseWriter, r *http.Request) {
	loan, err := h.service.GetLoanByCode(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, loan)
}

// ListLoans filters loans by the required status query parameter
func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	status, ok := domain.ParseLoanStatus(r.URL.Query().Get("status"))
	if !ok {
		response.FromError(w, customError.WrapValidation("status must be a valid loan status"))
		return
	}

	loans, err := h.service.ListByStatus(r.Context(), status)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, nonNil(loans))
}

func (h *LoanHandler) ListCustomerLoans(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	loans, err := h.service.ListByCustomer(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, nonNil(loans))
}

func (h *LoanHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, func(id uuid.UUID) (interface{}, error) {
		return h.service.GetPaymentSchedule(r.Context(), id)
	})
}

func (h *LoanHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, func(id uuid.UUID) (interface{}, error) {
		return h.service.GetLoanBalance(r.Context(), id)
	})
}

// ApplyEvent submits an operator event such as MANUAL_REDEEM
func (h *LoanHandler) ApplyEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	var req domain.TransitionRequest
	if err := decodeAndValidate(r, h.validator, &req); err != nil {
		response.FromError(w, err)
		return
	}

	loan, err := h.service.ApplyEvent(r.Context(), id, req.Event)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, loan)
}

// Upcoming lists loans falling due within ?days= days, defaulting to the configured window
func (h *LoanHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 0)
	if err != nil {
		response.FromError(w, err)
		return
	}

	upcoming, err := h.service.UpcomingRepayments(r.Context(), days)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, nonNil(upcoming))
}

func (h *LoanHandler) byID(w http.ResponseWriter, r *http.Request, fn func(id uuid.UUID) (interface{}, error)) {
	id, err := pathUUID(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	data, err := fn(id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, data)
}

// nonNil keeps empty lists encoded as [] rather than null
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
