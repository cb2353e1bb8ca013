package domain

import "context"

// SortDirection is the ordering direction of a listing.
type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// Sort orders a listing by one column.
type Sort struct {
	Field     string
	Direction SortDirection
}

func (s Sort) IsZero() bool { return s.Field == "" }

// Filter is an equality predicate: Field = Value.
type Filter struct {
	Field string
	Value any
}

// Query describes a filtered, ordered and paginated listing.
// PerPage <= 0 means the listing is not bounded.
type Query struct {
	Filters   []Filter
	Sort      Sort
	Relations []string
	Page      int
	PerPage   int
}

// Where returns a copy of q with an extra equality filter.
func (q Query) Where(field string, value any) Query {
	filters := make([]Filter, 0, len(q.Filters)+1)
	filters = append(filters, q.Filters...)
	q.Filters = append(filters, Filter{Field: field, Value: value})
	return q
}

// With returns a copy of q that eager-loads the given relations.
func (q Query) With(relations ...string) Query {
	rel := make([]string, 0, len(q.Relations)+len(relations))
	rel = append(rel, q.Relations...)
	q.Relations = append(rel, relations...)
	return q
}

// OrderBy returns a copy of q ordered by field.
func (q Query) OrderBy(field string, dir SortDirection) Query {
	q.Sort = Sort{Field: field, Direction: dir}
	return q
}

// Offset is the number of rows skipped before the requested page.
func (q Query) Offset() int {
	if q.PerPage <= 0 || q.Page <= 1 {
		return 0
	}
	return (q.Page - 1) * q.PerPage
}

// Page is one bounded slice of a listing plus its metadata.
type Page[T any] struct {
	Items    []T `json:"data"`
	Total    int `json:"total"`
	Page     int `json:"current_page"`
	PerPage  int `json:"per_page"`
	LastPage int `json:"last_page"`
}

// NewPage is used by stores to assemble a page; services never build one.
func NewPage[T any](items []T, total, page, perPage int) Page[T] {
	if items == nil {
		items = []T{}
	}
	if page < 1 {
		page = 1
	}
	last := 1
	if perPage > 0 && total > 0 {
		last = (total + perPage - 1) / perPage
	}
	return Page[T]{
		Items:    items,
		Total:    total,
		Page:     page,
		PerPage:  perPage,
		LastPage: last,
	}
}

//go:generate mockgen -source internal/domain/repo.go -destination=internal/application/service/store_mock_test.go -package=service

// OrderStore persists orders. Attach and InTx exist because an order is
// created together with its product line items.
type OrderStore interface {
	Insert(ctx context.Context, in NewOrder) (Order, error)
	FindByID(ctx context.Context, id int64) (Order, error)
	FindByIDWith(ctx context.Context, id int64, relations []string) (Order, error)
	Query(ctx context.Context, q Query) (Page[Order], error)
	Update(ctx context.Context, id int64, patch OrderPatch) (Order, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Attach(ctx context.Context, id int64, relation string, refs []ProductRef) error
	// InTx runs fn against a store bound to one transaction. The transaction
	// commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx OrderStore) error) error
}

type TransactionStore interface {
	Insert(ctx context.Context, in NewTransaction) (Transaction, error)
	FindByID(ctx context.Context, id int64) (Transaction, error)
	FindByIDWith(ctx context.Context, id int64, relations []string) (Transaction, error)
	Query(ctx context.Context, q Query) (Page[Transaction], error)
	Update(ctx context.Context, id int64, patch TransactionPatch) (Transaction, error)
	Delete(ctx context.Context, id int64) (bool, error)
}
