// Package memory provides an in-process Store used by tests and the memory storage driver.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/pawn-engine/internal/domain"
	"github.com/segyhp/pawn-engine/internal/repository"
	"github.com/segyhp/pawn-engine/pkg/utils"
	"github.com/shopspring/decimal"
)

type state struct {
	loans       map[uuid.UUID]*domain.Loan
	collaterals map[uuid.UUID]*domain.CollateralItem
	repayments  []*domain.Repayment
	customers   map[uuid.UUID]struct{}
	branches    map[uuid.UUID]struct{}
	currencies  map[uuid.UUID]struct{}
}

func newState() *state {
	return &state{
		loans:       make(map[uuid.UUID]*domain.Loan),
		collaterals: make(map[uuid.UUID]*domain.CollateralItem),
		customers:   make(map[uuid.UUID]struct{}),
		branches:    make(map[uuid.UUID]struct{}),
		currencies:  make(map[uuid.UUID]struct{}),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, l := range s.loans {
		c.loans[id] = l.Clone()
	}
	for id, item := range s.collaterals {
		v := *item
		c.collaterals[id] = &v
	}
	c.repayments = append(c.repayments, s.repayments...)
	for id := range s.customers {
		c.customers[id] = struct{}{}
	}
	for id := range s.branches {
		c.branches[id] = struct{}{}
	}
	for id := range s.currencies {
		c.currencies[id] = struct{}{}
	}
	return c
}

// Store keeps all records in maps guarded by one mutex. A unit of work holds the
// mutex for its whole duration and operates on a copy that replaces the live state on commit.
type Store struct {
	mu sync.Mutex
	st *state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

// AddCustomer, AddBranch and AddCurrency seed master data owned by other systems.
func (s *Store) AddCustomer(id uuid.UUID) { s.addRef(func(st *state) { st.customers[id] = struct{}{} }) }
func (s *Store) AddBranch(id uuid.UUID)   { s.addRef(func(st *state) { st.branches[id] = struct{}{} }) }
func (s *Store) AddCurrency(id uuid.UUID) { s.addRef(func(st *state) { st.currencies[id] = struct{}{} }) }

func (s *Store) addRef(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.st)
}

func (s *Store) Loans() repository.LoanRepository             { return s.root().Loans() }
func (s *Store) Collaterals() repository.CollateralRepository { return s.root().Collaterals() }
func (s *Store) Repayments() repository.RepaymentRepository   { return s.root().Repayments() }
func (s *Store) Customers() repository.ReferenceRepository    { return s.root().Customers() }
func (s *Store) Branches() repository.ReferenceRepository     { return s.root().Branches() }
func (s *Store) Currencies() repository.ReferenceRepository   { return s.root().Currencies() }

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.root().WithTx(ctx, fn)
}

func (s *Store) root() *view {
	return &view{store: s}
}

// view is either the auto-committing root (st == nil) or an open unit of work
type view struct {
	store *Store
	st    *state
}

func (v *view) do(fn func(st *state) error) error {
	if v.st != nil {
		return fn(v.st)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.st)
}

func (v *view) Loans() repository.LoanRepository             { return &loanRepo{v} }
func (v *view) Collaterals() repository.CollateralRepository { return &collateralRepo{v} }
func (v *view) Repayments() repository.RepaymentRepository   { return &repaymentRepo{v} }
func (v *view) Customers() repository.ReferenceRepository {
	return &referenceRepo{v, func(st *state) map[uuid.UUID]struct{} { return st.customers }}
}
func (v *view) Branches() repository.ReferenceRepository {
	return &referenceRepo{v, func(st *state) map[uuid.UUID]struct{} { return st.branches }}
}
func (v *view) Currencies() repository.ReferenceRepository {
	return &referenceRepo{v, func(st *state) map[uuid.UUID]struct{} { return st.currencies }}
}

func (v *view) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if v.st != nil {
		return fn(v)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	v.store.mu.Lock()
	defer v.store.mu.Unlock()

	work := v.store.st.clone()
	if err := fn(&view{store: v.store, st: work}); err != nil {
		return err
	}
	v.store.st = work
	return nil
}

type loanRepo struct{ v *view }

func (r *loanRepo) Create(ctx context.Context, loan *domain.Loan) error {
	return r.v.do(func(st *state) error {
		loan.Version = 1
		st.loans[loan.ID] = loan.Clone()
		return nil
	})
}

func (r *loanRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	var out *domain.Loan
	err := r.v.do(func(st *state) error {
		l, ok := st.loans[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = l.Clone()
		return nil
	})
	return out, err
}

func (r *loanRepo) GetByCode(ctx context.Context, code string) (*domain.Loan, error) {
	var out *domain.Loan
	err := r.v.do(func(st *state) error {
		for _, l := range st.loans {
			if l.LoanCode == code {
				out = l.Clone()
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *loanRepo) FindByStatus(ctx context.Context, status domain.LoanStatus) ([]*domain.Loan, error) {
	return r.filter(func(l *domain.Loan) bool { return l.Status == status }, byDueDate)
}

func (r *loanRepo) FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Loan, error) {
	return r.filter(func(l *domain.Loan) bool { return l.CustomerID == customerID }, func(a, b *domain.Loan) bool {
		return a.CreatedAt.After(b.CreatedAt)
	})
}

func (r *loanRepo) FindDueBetween(ctx context.Context, start, end time.Time, statuses ...domain.LoanStatus) ([]*domain.Loan, error) {
	return r.filter(func(l *domain.Loan) bool {
		return utils.IsOnOrBefore(start, l.DueDate) && utils.IsOnOrBefore(l.DueDate, end) && hasStatus(l, statuses)
	}, byDueDate)
}

func (r *loanRepo) FindDueOnOrBefore(ctx context.Context, date time.Time, statuses ...domain.LoanStatus) ([]*domain.Loan, error) {
	return r.filter(func(l *domain.Loan) bool {
		return utils.IsOnOrBefore(l.DueDate, date) && hasStatus(l, statuses)
	}, byDueDate)
}

func (r *loanRepo) FindGraceExpired(ctx context.Context, date time.Time) ([]*domain.Loan, error) {
	return r.filter(func(l *domain.Loan) bool {
		return l.Status == domain.LoanStatusOverdue && l.GracePeriodEndDate != nil && utils.IsOnOrBefore(*l.GracePeriodEndDate, date)
	}, byDueDate)
}

func (r *loanRepo) FindDefaultedBetween(ctx context.Context, start, end time.Time) ([]*domain.Loan, error) {
	return r.filter(func(l *domain.Loan) bool {
		if l.Status != domain.LoanStatusDefaulted || l.DefaultedAt == nil {
			return false
		}
		return !utils.StartOfDay(*l.DefaultedAt).Before(utils.StartOfDay(start)) && utils.IsOnOrBefore(*l.DefaultedAt, end)
	}, byDueDate)
}

func (r *loanRepo) Save(ctx context.Context, loan *domain.Loan) error {
	return r.v.do(func(st *state) error {
		cur, ok := st.loans[loan.ID]
		if !ok || cur.Version != loan.Version {
			return repository.ErrVersionConflict
		}
		loan.Version++
		st.loans[loan.ID] = loan.Clone()
		return nil
	})
}

func (r *loanRepo) filter(keep func(*domain.Loan) bool, less func(a, b *domain.Loan) bool) ([]*domain.Loan, error) {
	var out []*domain.Loan
	err := r.v.do(func(st *state) error {
		for _, l := range st.loans {
			if keep(l) {
				out = append(out, l.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, err
}

func byDueDate(a, b *domain.Loan) bool {
	if !a.DueDate.Equal(b.DueDate) {
		return a.DueDate.Before(b.DueDate)
	}
	return a.LoanCode < b.LoanCode
}

func hasStatus(l *domain.Loan, statuses []domain.LoanStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if l.Status == s {
			return true
		}
	}
	return false
}

type collateralRepo struct{ v *view }

func (r *collateralRepo) Create(ctx context.Context, item *domain.CollateralItem) error {
	return r.v.do(func(st *state) error {
		item.Version = 1
		c := *item
		st.collaterals[item.ID] = &c
		return nil
	})
}

func (r *collateralRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.CollateralItem, error) {
	var out *domain.CollateralItem
	err := r.v.do(func(st *state) error {
		item, ok := st.collaterals[id]
		if !ok {
			return repository.ErrNotFound
		}
		c := *item
		out = &c
		return nil
	})
	return out, err
}

func (r *collateralRepo) Save(ctx context.Context, item *domain.CollateralItem) error {
	return r.v.do(func(st *state) error {
		cur, ok := st.collaterals[item.ID]
		if !ok || cur.Version != item.Version {
			return repository.ErrVersionConflict
		}
		item.Version++
		c := *item
		st.collaterals[item.ID] = &c
		return nil
	})
}

type repaymentRepo struct{ v *view }

func (r *repaymentRepo) Create(ctx context.Context, repayment *domain.Repayment) error {
	return r.v.do(func(st *state) error {
		c := *repayment
		st.repayments = append(st.repayments, &c)
		return nil
	})
}

func (r *repaymentRepo) SumPaidByLoan(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	err := r.v.do(func(st *state) error {
		for _, rp := range st.repayments {
			if rp.LoanID == loanID {
				total = total.Add(rp.PaidAmount)
			}
		}
		return nil
	})
	return total, err
}

func (r *repaymentRepo) FindByLoan(ctx context.Context, loanID uuid.UUID) ([]*domain.Repayment, error) {
	return r.filter(func(_ *state, rp *domain.Repayment) bool { return rp.LoanID == loanID })
}

func (r *repaymentRepo) FindByDateRange(ctx context.Context, start, end time.Time) ([]*domain.Repayment, error) {
	return r.filter(func(_ *state, rp *domain.Repayment) bool { return inDayRange(rp.PaymentDate, start, end) })
}

func (r *repaymentRepo) FindByCustomerBetween(ctx context.Context, customerID uuid.UUID, start, end time.Time) ([]*domain.Repayment, error) {
	return r.filter(func(st *state, rp *domain.Repayment) bool {
		l, ok := st.loans[rp.LoanID]
		return ok && l.CustomerID == customerID && inDayRange(rp.PaymentDate, start, end)
	})
}

func (r *repaymentRepo) FindByBranchAndDate(ctx context.Context, branchID uuid.UUID, date time.Time) ([]*domain.Repayment, error) {
	return r.filter(func(st *state, rp *domain.Repayment) bool {
		l, ok := st.loans[rp.LoanID]
		return ok && l.BranchID == branchID && inDayRange(rp.PaymentDate, date, date)
	})
}

func (r *repaymentRepo) filter(keep func(*state, *domain.Repayment) bool) ([]*domain.Repayment, error) {
	var out []*domain.Repayment
	err := r.v.do(func(st *state) error {
		for _, rp := range st.repayments {
			if keep(st, rp) {
				c := *rp
				out = append(out, &c)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].PaymentDate.Before(out[j].PaymentDate) })
	return out, err
}

func inDayRange(t, start, end time.Time) bool {
	day := utils.StartOfDay(t)
	return !day.Before(utils.StartOfDay(start)) && !day.After(utils.StartOfDay(end))
}

type referenceRepo struct {
	v   *view
	set func(st *state) map[uuid.UUID]struct{}
}

func (r *referenceRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.v.do(func(st *state) error {
		_, ok = r.set(st)[id]
		return nil
	})
	return ok, err
}
