// Package memory holds in-process stores for local runs and tests. They
// follow the same contracts as the Postgres stores, including NotFound
// semantics and default ordering.
package memory

import (
	"cmp"
	"fmt"
	"time"

	"github.com/TemirB/order-desk/internal/domain"
)

type Option func(*clock)

type clock struct {
	now func() time.Time
}

// WithClock replaces the time source used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(c *clock) { c.now = now }
}

func newClock(opts []Option) clock {
	c := clock{now: time.Now}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func unsupportedField(field string) error {
	return fmt.Errorf("%w: unsupported field %q", domain.ErrStoreFailure, field)
}

func compareTime(a, b time.Time) int { return a.Compare(b) }

func directed(c int, dir domain.SortDirection) int {
	if dir == domain.Desc {
		return -c
	}
	return c
}

// paginate slices rows, already filtered and sorted, into the requested page.
func paginate[T any](rows []T, q domain.Query) domain.Page[T] {
	total := len(rows)
	if q.PerPage <= 0 {
		return domain.NewPage(rows, total, 1, q.PerPage)
	}
	from := min(q.Offset(), total)
	to := min(from+q.PerPage, total)
	out := make([]T, to-from)
	copy(out, rows[from:to])
	return domain.NewPage(out, total, max(q.Page, 1), q.PerPage)
}

func tieBreak(a, b int64, dir domain.SortDirection) int {
	return directed(cmp.Compare(a, b), dir)
}
