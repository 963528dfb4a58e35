package statemachine

import (
	"github.com/segyhp/pawn-engine/internal/domain"
	customError "github.com/segyhp/pawn-engine/pkg/errors"
)

// next returns the status reached from current via event, or false when the pair is not allowed
func next(current domain.LoanStatus, event domain.LoanEvent) (domain.LoanStatus, bool) {
	switch current {
	case domain.LoanStatusCreated:
		switch event {
		case domain.EventIssueLoan:
			return domain.LoanStatusActive, true
		case domain.EventCancel, domain.EventManualCancel:
			return domain.LoanStatusCancelled, true
		}

	case domain.LoanStatusActive:
		switch event {
		case domain.EventPartialPayment:
			return domain.LoanStatusPartiallyPaid, true
		case domain.EventFullPayment, domain.EventManualRedeem:
			return domain.LoanStatusRedeemed, true
		case domain.EventDueDatePassed:
			return domain.LoanStatusOverdue, true
		case domain.EventManualDefault:
			return domain.LoanStatusDefaulted, true
		case domain.EventManualCancel:
			return domain.LoanStatusCancelled, true
		}

	case domain.LoanStatusPartiallyPaid:
		switch event {
		case domain.EventPartialPayment:
			return domain.LoanStatusPartiallyPaid, true
		case domain.EventFullPayment, domain.EventManualRedeem:
			return domain.LoanStatusRedeemed, true
		case domain.EventDueDatePassed:
			return domain.LoanStatusOverdue, true
		case domain.EventManualDefault:
			return domain.LoanStatusDefaulted, true
		}

	case domain.LoanStatusOverdue:
		switch event {
		case domain.EventGracePeriodExpired:
			return domain.LoanStatusDefaulted, true
		case domain.EventFullPayment, domain.EventManualRedeem:
			return domain.LoanStatusRedeemed, true
		case domain.EventPartialPayment:
			return domain.LoanStatusOverdue, true
		}
	}

	return "", false
}

// NextStatus resolves a transition or returns an INVALID_TRANSITION error listing the valid events
func NextStatus(current domain.LoanStatus, event domain.LoanEvent) (domain.LoanStatus, error) {
	to, ok := next(current, event)
	if !ok {
		valid := ValidEvents(current)
		names := make([]string, len(valid))
		for i, e := range valid {
			names[i] = string(e)
		}
		return "", customError.WrapInvalidTransition(string(current), string(event), names)
	}
	return to, nil
}

func IsValidTransition(current domain.LoanStatus, event domain.LoanEvent) bool {
	_, ok := next(current, event)
	return ok
}

// ValidEvents lists the events accepted in status, empty for terminal statuses
func ValidEvents(current domain.LoanStatus) []domain.LoanEvent {
	var events []domain.LoanEvent
	for _, e := range domain.AllLoanEvents() {
		if _, ok := next(current, e); ok {
			events = append(events, e)
		}
	}
	return events
}
