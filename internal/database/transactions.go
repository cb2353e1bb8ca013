package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TemirB/order-desk/internal/config"
	"github.com/TemirB/order-desk/internal/domain"
)

type TransactionStore struct {
	db           querier
	transactions table
}

func NewTransactionStore(pool *pgxpool.Pool, tables config.Tables) *TransactionStore {
	return &TransactionStore{db: pool, transactions: transactionsTable(tables)}
}

func transactionsTable(t config.Tables) table {
	return table{
		name:    t.Qualified(t.Transactions),
		columns: []string{"id", "reference", "status", "amount", "due_date", "created_at", "updated_at"},
		fields: map[string]string{
			"id":         "id",
			"reference":  "reference",
			"status":     "status",
			"amount":     "amount",
			"due_date":   "due_date",
			"created_at": "created_at",
			"updated_at": "updated_at",
		},
	}
}

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var (
		t      domain.Transaction
		status string
	)
	if err := row.Scan(&t.ID, &t.Reference, &status, &t.Amount, &t.DueDate, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return domain.Transaction{}, err
	}
	t.Status = domain.TransactionStatus(status)
	return t, nil
}

func (s *TransactionStore) Insert(ctx context.Context, in domain.NewTransaction) (domain.Transaction, error) {
	sql := fmt.Sprintf(`
		INSERT INTO %s (reference, status, amount, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING %s
	`, s.transactions.name, s.transactions.selectList())

	t, err := scanTransaction(s.db.QueryRow(ctx, sql, in.Reference, string(in.Status), in.Amount, in.DueDate))
	if err != nil {
		return domain.Transaction{}, storeError("insert transaction", err)
	}
	return t, nil
}

func (s *TransactionStore) FindByID(ctx context.Context, id int64) (domain.Transaction, error) {
	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, s.transactions.selectList(), s.transactions.name)
	t, err := scanTransaction(s.db.QueryRow(ctx, sql, id))
	if err != nil {
		return domain.Transaction{}, storeError("find transaction", err)
	}
	return t, nil
}

// FindByIDWith accepts no relations; transactions have none.
func (s *TransactionStore) FindByIDWith(ctx context.Context, id int64, relations []string) (domain.Transaction, error) {
	if len(relations) > 0 {
		return domain.Transaction{}, fmt.Errorf("%w: %v", domain.ErrUnknownRelation, relations)
	}
	return s.FindByID(ctx, id)
}

func (s *TransactionStore) Query(ctx context.Context, q domain.Query) (domain.Page[domain.Transaction], error) {
	if len(q.Relations) > 0 {
		return domain.Page[domain.Transaction]{}, fmt.Errorf("%w: %v", domain.ErrUnknownRelation, q.Relations)
	}
	list, count, args, err := s.transactions.listSQL(q)
	if err != nil {
		return domain.Page[domain.Transaction]{}, err
	}

	var total int
	if err := s.db.QueryRow(ctx, count, args...).Scan(&total); err != nil {
		return domain.Page[domain.Transaction]{}, storeError("count transactions", err)
	}

	rows, err := s.db.Query(ctx, list, args...)
	if err != nil {
		return domain.Page[domain.Transaction]{}, storeError("list transactions", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return domain.Page[domain.Transaction]{}, storeError("scan transaction", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return domain.Page[domain.Transaction]{}, storeError("list transactions", err)
	}
	return domain.NewPage(out, total, q.Page, q.PerPage), nil
}

func (s *TransactionStore) Update(ctx context.Context, id int64, patch domain.TransactionPatch) (domain.Transaction, error) {
	set, args := transactionAssignments(patch)
	args = append(args, id)
	sql := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d RETURNING %s`,
		s.transactions.name, set, len(args), s.transactions.selectList())

	t, err := scanTransaction(s.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return domain.Transaction{}, storeError("update transaction", err)
	}
	return t, nil
}

func transactionAssignments(patch domain.TransactionPatch) (string, []any) {
	var (
		set  []string
		args []any
	)
	if patch.Status != nil {
		args = append(args, string(*patch.Status))
		set = append(set, fmt.Sprintf("status = $%d", len(args)))
	}
	if patch.Amount != nil {
		args = append(args, *patch.Amount)
		set = append(set, fmt.Sprintf("amount = $%d", len(args)))
	}
	if patch.DueDate != nil {
		args = append(args, *patch.DueDate)
		set = append(set, fmt.Sprintf("due_date = $%d", len(args)))
	}
	set = append(set, "updated_at = now()")
	return joinComma(set), args
}

func (s *TransactionStore) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := s.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.transactions.name), id)
	if err != nil {
		return false, storeError("delete transaction", err)
	}
	return tag.RowsAffected() > 0, nil
}

var _ domain.TransactionStore = (*TransactionStore)(nil)
