// Package statemachine owns every loan status change and its entry side effects.
package statemachine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/pawn-engine/internal/clock"
	"github.com/segyhp/pawn-engine/internal/domain"
	"github.com/segyhp/pawn-engine/internal/metrics"
	"github.com/segyhp/pawn-engine/internal/repository"
	customError "github.com/segyhp/pawn-engine/pkg/errors"
	"github.com/segyhp/pawn-engine/pkg/utils"
)

const DefaultOverdueGraceDays = 30

type Machine struct {
	store            repository.Store
	clock            clock.Clock
	overdueGraceDays int
	metrics          *metrics.Metrics
	logger           *slog.Logger
}

func NewMachine(
	store repository.Store,
	clk clock.Clock,
	overdueGraceDays int,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Machine {
	if overdueGraceDays <= 0 {
		overdueGraceDays = DefaultOverdueGraceDays
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		store:            store,
		clock:            clk,
		overdueGraceDays: overdueGraceDays,
		metrics:          m,
		logger:           logger,
	}
}

// Transition applies event to loan in its own unit of work and returns the persisted loan.
// The loan passed in is never modified.
func (m *Machine) Transition(ctx context.Context, loan *domain.Loan, event domain.LoanEvent) (*domain.Loan, error) {
	var updated *domain.Loan
	err := m.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		updated, err = m.TransitionTx(ctx, tx, loan, event)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// TransitionByID loads the current loan and applies event to it
func (m *Machine) TransitionByID(ctx context.Context, id uuid.UUID, event domain.LoanEvent) (*domain.Loan, error) {
	var updated *domain.Loan
	err := m.store.WithTx(ctx, func(tx repository.Store) error {
		loan, err := tx.Loans().GetByID(ctx, id)
		if err != nil {
			return m.storeError(err, "Loan", id)
		}
		updated, err = m.TransitionTx(ctx, tx, loan, event)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// TransitionTx is Transition within a caller-owned unit of work
func (m *Machine) TransitionTx(ctx context.Context, tx repository.Store, loan *domain.Loan, event domain.LoanEvent) (*domain.Loan, error) {
	from := loan.Status

	to, err := NextStatus(from, event)
	if err != nil {
		m.metrics.TransitionFailed(string(event), customError.ErrCodeInvalidTransition)
		m.logger.Warn("rejected loan transition",
			"loan_code", loan.LoanCode, "status", from, "event", event)
		return nil, err
	}

	updated := loan.Clone()
	now := m.clock.Now()

	// Self-loops keep the stored entry data (e.g. the original grace period end)
	if to != from {
		if err := m.enter(ctx, tx, updated, to, now); err != nil {
			m.metrics.TransitionFailed(string(event), customError.Code(err))
			return nil, err
		}
	}

	updated.Status = to
	updated.UpdatedAt = now

	if err := tx.Loans().Save(ctx, updated); err != nil {
		err = m.storeError(err, "Loan", loan.ID)
		m.metrics.TransitionFailed(string(event), customError.Code(err))
		return nil, err
	}

	m.metrics.Transition(string(from), string(to), string(event))
	m.logger.Info("loan status changed",
		"loan_code", updated.LoanCode, "from", from, "to", to, "event", event)

	return updated, nil
}

func (m *Machine) enter(ctx context.Context, tx repository.Store, loan *domain.Loan, to domain.LoanStatus, now time.Time) error {
	switch to {
	case domain.LoanStatusActive:
		return m.setCollateral(ctx, tx, loan.CollateralID, domain.CollateralPawned, now)

	case domain.LoanStatusRedeemed:
		loan.RedeemedAt = &now
		return m.setCollateral(ctx, tx, loan.CollateralID, domain.CollateralAvailable, now)

	case domain.LoanStatusDefaulted:
		loan.DefaultedAt = &now
		return m.setCollateral(ctx, tx, loan.CollateralID, domain.CollateralForfeited, now)

	case domain.LoanStatusCancelled:
		return m.setCollateral(ctx, tx, loan.CollateralID, domain.CollateralAvailable, now)

	case domain.LoanStatusOverdue:
		graceEnd := utils.AddDays(clock.Today(m.clock), m.overdueGraceDays)
		loan.OverdueAt = &now
		loan.GracePeriodEndDate = &graceEnd
	}

	return nil
}

func (m *Machine) setCollateral(ctx context.Context, tx repository.Store, id uuid.UUID, status domain.CollateralStatus, now time.Time) error {
	item, err := tx.Collaterals().GetByID(ctx, id)
	if err != nil {
		return m.storeError(err, "Collateral", id)
	}
	if item.Status == status {
		return nil
	}

	item.Status = status
	item.UpdatedAt = now

	if err := tx.Collaterals().Save(ctx, item); err != nil {
		return m.storeError(err, "Collateral", id)
	}
	return nil
}

func (m *Machine) storeError(err error, entity string, id uuid.UUID) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return customError.WrapEntityNotFound(entity, id.String())
	case errors.Is(err, repository.ErrVersionConflict):
		return customError.WrapConcurrentModification(entity, id.String())
	}
	return customError.WrapDatabaseError(err)
}
