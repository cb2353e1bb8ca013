package database

import (
	"fmt"
	"strings"

	"github.com/TemirB/order-desk/internal/domain"
)

// table describes the listable columns of one table. fields maps public
// field names to columns; nothing else reaches the SQL text.
type table struct {
	name    string
	columns []string
	fields  map[string]string
}

func (t table) selectList() string {
	return strings.Join(t.columns, ", ")
}

func (t table) where(filters []domain.Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	conds := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		col, ok := t.fields[f.Field]
		if !ok {
			return "", nil, fmt.Errorf("%w: unsupported filter %q", domain.ErrStoreFailure, f.Field)
		}
		args = append(args, argValue(f.Value))
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func (t table) orderBy(s domain.Sort) (string, error) {
	if s.IsZero() {
		return " ORDER BY id ASC", nil
	}
	col, ok := t.fields[s.Field]
	if !ok {
		return "", fmt.Errorf("%w: unsupported sort field %q", domain.ErrStoreFailure, s.Field)
	}
	var dir string
	switch s.Direction {
	case domain.Asc, "":
		dir = "ASC"
	case domain.Desc:
		dir = "DESC"
	default:
		return "", fmt.Errorf("%w: unsupported sort direction %q", domain.ErrStoreFailure, s.Direction)
	}
	if col == "id" {
		return fmt.Sprintf(" ORDER BY id %s", dir), nil
	}
	return fmt.Sprintf(" ORDER BY %s %s, id %s", col, dir, dir), nil
}

// listSQL builds the page query and the matching count query.
func (t table) listSQL(q domain.Query) (list, count string, args []any, err error) {
	where, args, err := t.where(q.Filters)
	if err != nil {
		return "", "", nil, err
	}
	order, err := t.orderBy(q.Sort)
	if err != nil {
		return "", "", nil, err
	}

	count = "SELECT count(*) FROM " + t.name + where
	list = "SELECT " + t.selectList() + " FROM " + t.name + where + order
	if q.PerPage > 0 {
		list += fmt.Sprintf(" LIMIT %d OFFSET %d", q.PerPage, q.Offset())
	}
	return list, count, args, nil
}

// argValue turns named string types into plain strings for the driver.
func argValue(v any) any {
	switch x := v.(type) {
	case domain.OrderStatus:
		return string(x)
	case domain.TransactionStatus:
		return string(x)
	default:
		return v
	}
}

func joinComma(parts []string) string { return strings.Join(parts, ", ") }
