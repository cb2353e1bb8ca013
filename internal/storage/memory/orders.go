package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/TemirB/order-desk/internal/domain"
)

// OrderStore keeps orders, the product catalogue, line items and invoices.
// InTx serializes transactions; a failed one reverts only its own writes.
type OrderStore struct {
	txMu sync.Mutex

	mu       sync.RWMutex
	orders   map[int64]domain.Order
	products map[int64]domain.Product
	lines    map[int64][]domain.ProductRef
	invoices map[int64]domain.Invoice
	nextID   int64
	clock    clock
}

func NewOrderStore(opts ...Option) *OrderStore {
	return &OrderStore{
		orders:   make(map[int64]domain.Order),
		products: make(map[int64]domain.Product),
		lines:    make(map[int64][]domain.ProductRef),
		invoices: make(map[int64]domain.Invoice),
		clock:    newClock(opts),
	}
}

// AddProduct seeds the product catalogue.
func (s *OrderStore) AddProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// AddInvoice attaches an invoice to an existing order.
func (s *OrderStore) AddInvoice(inv domain.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[inv.OrderID]; !ok {
		return domain.ErrNotFound
	}
	s.invoices[inv.OrderID] = inv
	return nil
}

func (s *OrderStore) Insert(_ context.Context, in domain.NewOrder) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(in), nil
}

func (s *OrderStore) insertLocked(in domain.NewOrder) domain.Order {
	s.nextID++
	now := s.clock.now()
	o := domain.Order{
		ID:        s.nextID,
		ClientID:  in.ClientID,
		Status:    in.Status,
		Total:     in.Total,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.orders[o.ID] = o
	return o
}

func (s *OrderStore) FindByID(ctx context.Context, id int64) (domain.Order, error) {
	return s.FindByIDWith(ctx, id, nil)
}

func (s *OrderStore) FindByIDWith(_ context.Context, id int64, relations []string) (domain.Order, error) {
	if err := checkOrderRelations(relations); err != nil {
		return domain.Order{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return s.load(o, relations), nil
}

func checkOrderRelations(relations []string) error {
	for _, r := range relations {
		if r != domain.RelationProducts && r != domain.RelationInvoice {
			return fmt.Errorf("%w: %q", domain.ErrUnknownRelation, r)
		}
	}
	return nil
}

// load must be called with mu held.
func (s *OrderStore) load(o domain.Order, relations []string) domain.Order {
	for _, r := range relations {
		switch r {
		case domain.RelationProducts:
			refs := s.lines[o.ID]
			o.Products = make([]domain.OrderProduct, 0, len(refs))
			for _, ref := range refs {
				p := s.products[ref.ProductID]
				o.Products = append(o.Products, domain.OrderProduct{
					ProductID: p.ID,
					Name:      p.Name,
					Price:     p.Price,
					Quantity:  ref.Quantity,
				})
			}
		case domain.RelationInvoice:
			if inv, ok := s.invoices[o.ID]; ok {
				o.Invoice = &inv
			}
		}
	}
	return o
}

func (s *OrderStore) Query(_ context.Context, q domain.Query) (domain.Page[domain.Order], error) {
	if err := checkOrderRelations(q.Relations); err != nil {
		return domain.Page[domain.Order]{}, err
	}
	for _, f := range q.Filters {
		if f.Field != "id" && f.Field != "client_id" && f.Field != "status" {
			return domain.Page[domain.Order]{}, unsupportedField(f.Field)
		}
	}
	sortBy := q.Sort
	if sortBy.IsZero() {
		sortBy = domain.Sort{Field: "id", Direction: domain.Asc}
	}
	switch sortBy.Field {
	case "id", "created_at", "updated_at", "total":
	default:
		return domain.Page[domain.Order]{}, unsupportedField(sortBy.Field)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if matchOrder(o, q.Filters) {
			rows = append(rows, o)
		}
	}
	slices.SortStableFunc(rows, func(a, b domain.Order) int {
		var c int
		switch sortBy.Field {
		case "created_at":
			c = compareTime(a.CreatedAt, b.CreatedAt)
		case "updated_at":
			c = compareTime(a.UpdatedAt, b.UpdatedAt)
		case "total":
			c = cmp.Compare(a.Total, b.Total)
		}
		if c != 0 {
			return directed(c, sortBy.Direction)
		}
		return tieBreak(a.ID, b.ID, sortBy.Direction)
	})

	page := paginate(rows, q)
	for i := range page.Items {
		page.Items[i] = s.load(page.Items[i], q.Relations)
	}
	return page, nil
}

func matchOrder(o domain.Order, filters []domain.Filter) bool {
	for _, f := range filters {
		var ok bool
		switch f.Field {
		case "id":
			ok = f.Value == o.ID
		case "client_id":
			ok = f.Value == o.ClientID
		case "status":
			ok = f.Value == o.Status || f.Value == string(o.Status)
		}
		if !ok {
			return false
		}
	}
	return true
}

func (s *OrderStore) Update(_ context.Context, id int64, patch domain.OrderPatch) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, o, err := s.updateLocked(id, patch)
	return o, err
}

// updateLocked returns the row before and after the patch.
func (s *OrderStore) updateLocked(id int64, patch domain.OrderPatch) (domain.Order, domain.Order, error) {
	prev, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.Order{}, domain.ErrNotFound
	}
	o := prev
	if patch.Status != nil {
		o.Status = *patch.Status
	}
	if patch.Total != nil {
		o.Total = *patch.Total
	}
	o.UpdatedAt = s.clock.now()
	s.orders[id] = o
	return prev, o, nil
}

func (s *OrderStore) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.deleteLocked(id)
	return ok, nil
}

// removed is everything Delete dropped for one order.
type removed struct {
	order   domain.Order
	lines   []domain.ProductRef
	invoice *domain.Invoice
}

func (s *OrderStore) deleteLocked(id int64) (removed, bool) {
	o, ok := s.orders[id]
	if !ok {
		return removed{}, false
	}
	r := removed{order: o, lines: s.lines[id]}
	if inv, ok := s.invoices[id]; ok {
		r.invoice = &inv
	}
	delete(s.orders, id)
	delete(s.lines, id)
	delete(s.invoices, id)
	return r, true
}

func (s *OrderStore) Attach(_ context.Context, id int64, relation string, refs []domain.ProductRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.attachLocked(id, relation, refs)
	return err
}

// attachLocked returns how many line items the order had before.
func (s *OrderStore) attachLocked(id int64, relation string, refs []domain.ProductRef) (int, error) {
	if relation != domain.RelationProducts {
		return 0, fmt.Errorf("%w: cannot attach %q", domain.ErrUnknownRelation, relation)
	}
	if _, ok := s.orders[id]; !ok {
		return 0, domain.ErrNotFound
	}
	for _, ref := range refs {
		if _, ok := s.products[ref.ProductID]; !ok {
			return 0, fmt.Errorf("%w: attach product %d: product does not exist", domain.ErrStoreFailure, ref.ProductID)
		}
	}
	before := len(s.lines[id])
	s.lines[id] = append(slices.Clip(s.lines[id]), refs...)
	return before, nil
}

// InTx runs fn against a view of the store that records an undo step for
// every write. When fn fails only those steps are reverted, so writes made
// by other callers meanwhile survive. Ids are never handed out twice.
func (s *OrderStore) InTx(_ context.Context, fn func(tx domain.OrderStore) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &txOrderStore{OrderStore: s}
	if err := fn(tx); err != nil {
		s.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// txOrderStore is the store handed to an InTx callback. Undo steps run with
// mu held.
type txOrderStore struct {
	*OrderStore
	undo []func()
}

func (t *txOrderStore) Insert(_ context.Context, in domain.NewOrder) (domain.Order, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o := t.insertLocked(in)
	t.undo = append(t.undo, func() {
		delete(t.orders, o.ID)
		delete(t.lines, o.ID)
		delete(t.invoices, o.ID)
	})
	return o, nil
}

func (t *txOrderStore) Update(_ context.Context, id int64, patch domain.OrderPatch) (domain.Order, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, o, err := t.updateLocked(id, patch)
	if err != nil {
		return domain.Order{}, err
	}
	t.undo = append(t.undo, func() {
		if _, ok := t.orders[id]; ok {
			t.orders[id] = prev
		}
	})
	return o, nil
}

func (t *txOrderStore) Delete(_ context.Context, id int64) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.deleteLocked(id)
	if !ok {
		return false, nil
	}
	t.undo = append(t.undo, func() {
		t.orders[id] = r.order
		if len(r.lines) > 0 {
			t.lines[id] = r.lines
		}
		if r.invoice != nil {
			t.invoices[id] = *r.invoice
		}
	})
	return true, nil
}

func (t *txOrderStore) Attach(_ context.Context, id int64, relation string, refs []domain.ProductRef) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	before, err := t.attachLocked(id, relation, refs)
	if err != nil {
		return err
	}
	added := len(refs)
	t.undo = append(t.undo, func() {
		lines := t.lines[id]
		if len(lines) < before+added {
			return
		}
		kept := append(slices.Clip(lines[:before]), lines[before+added:]...)
		if len(kept) == 0 {
			delete(t.lines, id)
			return
		}
		t.lines[id] = kept
	})
	return nil
}

// InTx inside a transaction joins it.
func (t *txOrderStore) InTx(_ context.Context, fn func(tx domain.OrderStore) error) error {
	return fn(t)
}

var (
	_ domain.OrderStore = (*OrderStore)(nil)
	_ domain.OrderStore = (*txOrderStore)(nil)
)
