package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// store is the Postgres-backed Store. q is either the pool or an open transaction.
type store struct {
	db *sqlx.DB
	q  sqlx.ExtContext
}

func NewStore(db *sqlx.DB) Store {
	return &store{db: db, q: db}
}

func (s *store) Loans() LoanRepository {
	return &loanRepository{db: s.q}
}

func (s *store) Collaterals() CollateralRepository {
	return &collateralRepository{db: s.q}
}

func (s *store) Repayments() RepaymentRepository {
	return &repaymentRepository{db: s.q}
}

func (s *store) Customers() ReferenceRepository {
	return &referenceRepository{db: s.q, table: "customers"}
}

func (s *store) Branches() ReferenceRepository {
	return &referenceRepository{db: s.q, table: "branches"}
}

func (s *store) Currencies() ReferenceRepository {
	return &referenceRepository{db: s.q, table: "currencies"}
}

func (s *store) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if _, ok := s.q.(*sqlx.Tx); ok {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&store{db: s.db, q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// expectOneRow maps a zero-row update onto ErrVersionConflict
func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}
