package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/TemirB/order-desk/internal/domain"
)

type TransactionStore struct {
	mu     sync.RWMutex
	rows   map[int64]domain.Transaction
	nextID int64
	clock  clock
}

func NewTransactionStore(opts ...Option) *TransactionStore {
	return &TransactionStore{
		rows:  make(map[int64]domain.Transaction),
		clock: newClock(opts),
	}
}

func (s *TransactionStore) Insert(_ context.Context, in domain.NewTransaction) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := s.clock.now()
	t := domain.Transaction{
		ID:        s.nextID,
		Reference: in.Reference,
		Status:    in.Status,
		Amount:    in.Amount,
		DueDate:   in.DueDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.rows[t.ID] = t
	return t, nil
}

func (s *TransactionStore) FindByID(_ context.Context, id int64) (domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.rows[id]
	if !ok {
		return domain.Transaction{}, domain.ErrNotFound
	}
	return t, nil
}

// FindByIDWith exists for contract parity; transactions have no relations.
func (s *TransactionStore) FindByIDWith(ctx context.Context, id int64, relations []string) (domain.Transaction, error) {
	if len(relations) > 0 {
		return domain.Transaction{}, domain.ErrUnknownRelation
	}
	return s.FindByID(ctx, id)
}

func (s *TransactionStore) Query(_ context.Context, q domain.Query) (domain.Page[domain.Transaction], error) {
	if len(q.Relations) > 0 {
		return domain.Page[domain.Transaction]{}, domain.ErrUnknownRelation
	}

	s.mu.RLock()
	rows := make([]domain.Transaction, 0, len(s.rows))
	for _, t := range s.rows {
		rows = append(rows, t)
	}
	s.mu.RUnlock()

	var err error
	rows = slices.DeleteFunc(rows, func(t domain.Transaction) bool {
		for _, f := range q.Filters {
			ok, ferr := matchTransaction(t, f)
			if ferr != nil {
				err = ferr
			}
			if !ok {
				return true
			}
		}
		return false
	})
	if err != nil {
		return domain.Page[domain.Transaction]{}, err
	}

	sortBy := q.Sort
	if sortBy.IsZero() {
		sortBy = domain.Sort{Field: "id", Direction: domain.Asc}
	}
	var cmpErr error
	slices.SortStableFunc(rows, func(a, b domain.Transaction) int {
		var c int
		switch sortBy.Field {
		case "id":
		case "created_at":
			c = compareTime(a.CreatedAt, b.CreatedAt)
		case "updated_at":
			c = compareTime(a.UpdatedAt, b.UpdatedAt)
		case "due_date":
			c = compareTime(a.DueDate, b.DueDate)
		case "amount":
			c = cmp.Compare(a.Amount, b.Amount)
		default:
			cmpErr = unsupportedField(sortBy.Field)
		}
		if c != 0 {
			return directed(c, sortBy.Direction)
		}
		return tieBreak(a.ID, b.ID, sortBy.Direction)
	})
	if cmpErr != nil {
		return domain.Page[domain.Transaction]{}, cmpErr
	}

	return paginate(rows, q), nil
}

func matchTransaction(t domain.Transaction, f domain.Filter) (bool, error) {
	switch f.Field {
	case "id":
		return f.Value == t.ID, nil
	case "status":
		return f.Value == t.Status || f.Value == string(t.Status), nil
	case "reference":
		return f.Value == t.Reference, nil
	default:
		return false, unsupportedField(f.Field)
	}
}

func (s *TransactionStore) Update(_ context.Context, id int64, patch domain.TransactionPatch) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.rows[id]
	if !ok {
		return domain.Transaction{}, domain.ErrNotFound
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Amount != nil {
		t.Amount = *patch.Amount
	}
	if patch.DueDate != nil {
		t.DueDate = *patch.DueDate
	}
	t.UpdatedAt = s.clock.now()
	s.rows[id] = t
	return t, nil
}

func (s *TransactionStore) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[id]; !ok {
		return false, nil
	}
	delete(s.rows, id)
	return true, nil
}

var _ domain.TransactionStore = (*TransactionStore)(nil)
