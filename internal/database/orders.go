package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TemirB/order-desk/internal/config"
	"github.com/TemirB/order-desk/internal/domain"
)

// OrderStore is the Postgres order store. A store returned to an InTx
// callback runs every statement in that transaction.
type OrderStore struct {
	pool   *pgxpool.Pool
	db     querier
	tables config.Tables

	orders table
}

func NewOrderStore(pool *pgxpool.Pool, tables config.Tables) *OrderStore {
	return &OrderStore{
		pool:   pool,
		db:     pool,
		tables: tables,
		orders: ordersTable(tables),
	}
}

func ordersTable(t config.Tables) table {
	return table{
		name:    t.Qualified(t.Orders),
		columns: []string{"id", "client_id", "status", "total", "created_at", "updated_at"},
		fields: map[string]string{
			"id":         "id",
			"client_id":  "client_id",
			"status":     "status",
			"total":      "total",
			"created_at": "created_at",
			"updated_at": "updated_at",
		},
	}
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o      domain.Order
		status string
	)
	if err := row.Scan(&o.ID, &o.ClientID, &status, &o.Total, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)
	return o, nil
}

func (s *OrderStore) Insert(ctx context.Context, in domain.NewOrder) (domain.Order, error) {
	sql := fmt.Sprintf(`
		INSERT INTO %s (client_id, status, total, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		RETURNING %s
	`, s.orders.name, s.orders.selectList())

	o, err := scanOrder(s.db.QueryRow(ctx, sql, in.ClientID, string(in.Status), in.Total))
	if err != nil {
		return domain.Order{}, storeError("insert order", err)
	}
	return o, nil
}

func (s *OrderStore) FindByID(ctx context.Context, id int64) (domain.Order, error) {
	return s.FindByIDWith(ctx, id, nil)
}

func (s *OrderStore) FindByIDWith(ctx context.Context, id int64, relations []string) (domain.Order, error) {
	if err := checkOrderRelations(relations); err != nil {
		return domain.Order{}, err
	}
	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, s.orders.selectList(), s.orders.name)
	o, err := scanOrder(s.db.QueryRow(ctx, sql, id))
	if err != nil {
		return domain.Order{}, storeError("find order", err)
	}

	orders := []domain.Order{o}
	if err := s.loadRelations(ctx, orders, relations); err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

func (s *OrderStore) Query(ctx context.Context, q domain.Query) (domain.Page[domain.Order], error) {
	if err := checkOrderRelations(q.Relations); err != nil {
		return domain.Page[domain.Order]{}, err
	}
	list, count, args, err := s.orders.listSQL(q)
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}

	var total int
	if err := s.db.QueryRow(ctx, count, args...).Scan(&total); err != nil {
		return domain.Page[domain.Order]{}, storeError("count orders", err)
	}

	rows, err := s.db.Query(ctx, list, args...)
	if err != nil {
		return domain.Page[domain.Order]{}, storeError("list orders", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return domain.Page[domain.Order]{}, storeError("scan order", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return domain.Page[domain.Order]{}, storeError("list orders", err)
	}
	rows.Close()

	if err := s.loadRelations(ctx, orders, q.Relations); err != nil {
		return domain.Page[domain.Order]{}, err
	}
	return domain.NewPage(orders, total, q.Page, q.PerPage), nil
}

func (s *OrderStore) Update(ctx context.Context, id int64, patch domain.OrderPatch) (domain.Order, error) {
	set, args := orderAssignments(patch)
	args = append(args, id)
	sql := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d RETURNING %s`,
		s.orders.name, set, len(args), s.orders.selectList())

	o, err := scanOrder(s.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return domain.Order{}, storeError("update order", err)
	}
	return o, nil
}

// orderAssignments renders the SET clause of patch; updated_at always moves.
func orderAssignments(patch domain.OrderPatch) (string, []any) {
	var (
		set  []string
		args []any
	)
	if patch.Status != nil {
		args = append(args, string(*patch.Status))
		set = append(set, fmt.Sprintf("status = $%d", len(args)))
	}
	if patch.Total != nil {
		args = append(args, *patch.Total)
		set = append(set, fmt.Sprintf("total = $%d", len(args)))
	}
	set = append(set, "updated_at = now()")
	return joinComma(set), args
}

func (s *OrderStore) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := s.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.orders.name), id)
	if err != nil {
		return false, storeError("delete order", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Attach adds product line items to an order. Only the products relation
// can be attached.
func (s *OrderStore) Attach(ctx context.Context, id int64, relation string, refs []domain.ProductRef) error {
	if relation != domain.RelationProducts {
		return fmt.Errorf("%w: cannot attach %q", domain.ErrUnknownRelation, relation)
	}

	var exists bool
	if err := s.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, s.orders.name), id,
	).Scan(&exists); err != nil {
		return storeError("attach products", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	if len(refs) == 0 {
		return nil
	}

	sql := fmt.Sprintf(`INSERT INTO %s (order_id, product_id, quantity) VALUES ($1, $2, $3)`,
		s.tables.Qualified(s.tables.OrderProduct))
	batch := &pgx.Batch{}
	for _, ref := range refs {
		batch.Queue(sql, id, ref.ProductID, ref.Quantity)
	}
	if err := s.db.SendBatch(ctx, batch).Close(); err != nil {
		return storeError("attach products", err)
	}
	return nil
}

// InTx runs fn in one transaction. Nested calls reuse the outer transaction.
func (s *OrderStore) InTx(ctx context.Context, fn func(tx domain.OrderStore) error) error {
	if s.pool == nil {
		return fn(s)
	}
	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&OrderStore{db: tx, tables: s.tables, orders: s.orders})
	})
}

func checkOrderRelations(relations []string) error {
	for _, r := range relations {
		if r != domain.RelationProducts && r != domain.RelationInvoice {
			return fmt.Errorf("%w: %q", domain.ErrUnknownRelation, r)
		}
	}
	return nil
}

// loadRelations fills the requested relations of orders with one query per
// relation.
func (s *OrderStore) loadRelations(ctx context.Context, orders []domain.Order, relations []string) error {
	if len(orders) == 0 || len(relations) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	for _, r := range relations {
		var err error
		switch r {
		case domain.RelationProducts:
			err = s.loadProducts(ctx, orders, ids, index)
		case domain.RelationInvoice:
			err = s.loadInvoices(ctx, orders, ids, index)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *OrderStore) loadProducts(ctx context.Context, orders []domain.Order, ids []int64, index map[int64]int) error {
	for i := range orders {
		orders[i].Products = []domain.OrderProduct{}
	}
	rows, err := s.db.Query(ctx, fmt.Sprintf(`
		SELECT op.order_id, p.id, p.name, p.price, op.quantity
		FROM %s op
		JOIN %s p ON p.id = op.product_id
		WHERE op.order_id = ANY($1)
		ORDER BY op.order_id, p.id
	`, s.tables.Qualified(s.tables.OrderProduct), s.tables.Qualified(s.tables.Products)), ids)
	if err != nil {
		return storeError("load products", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID int64
			line    domain.OrderProduct
		)
		if err := rows.Scan(&orderID, &line.ProductID, &line.Name, &line.Price, &line.Quantity); err != nil {
			return storeError("scan product", err)
		}
		i := index[orderID]
		orders[i].Products = append(orders[i].Products, line)
	}
	return storeError("load products", rows.Err())
}

func (s *OrderStore) loadInvoices(ctx context.Context, orders []domain.Order, ids []int64, index map[int64]int) error {
	rows, err := s.db.Query(ctx, fmt.Sprintf(`
		SELECT id, order_id, number, amount, issued_at
		FROM %s
		WHERE order_id = ANY($1)
	`, s.tables.Qualified(s.tables.Invoices)), ids)
	if err != nil {
		return storeError("load invoices", err)
	}
	defer rows.Close()

	for rows.Next() {
		var inv domain.Invoice
		if err := rows.Scan(&inv.ID, &inv.OrderID, &inv.Number, &inv.Amount, &inv.IssuedAt); err != nil {
			return storeError("scan invoice", err)
		}
		orders[index[inv.OrderID]].Invoice = &inv
	}
	return storeError("load invoices", rows.Err())
}

var _ domain.OrderStore = (*OrderStore)(nil)
