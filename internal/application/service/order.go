// Package service holds the domain services built on the generic resource
// layer. Every write path here is an invalidation boundary: it forgets the
// entity's own keys and every list bucket the change can touch.
package service

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/TemirB/order-desk/internal/application/resource"
	"github.com/TemirB/order-desk/internal/cache"
	"github.com/TemirB/order-desk/internal/domain"
	"github.com/TemirB/order-desk/internal/observability"
)

const (
	orderPrefix = "order"

	typeClient = "client"
	typeStatus = "status"
)

// orderRelations are loaded by every order read.
var orderRelations = []string{domain.RelationInvoice, domain.RelationProducts}

type OrderService struct {
	*resource.Service[domain.Order, domain.NewOrder, domain.OrderPatch]

	store  domain.OrderStore
	logger *zap.Logger
}

func NewOrderService(store domain.OrderStore, c resource.Cache, ttl time.Duration, logger *zap.Logger, metrics observability.Metrics) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("service", orderPrefix))
	return &OrderService{
		Service: resource.New[domain.Order, domain.NewOrder, domain.OrderPatch](store, c, resource.Options{
			Prefix:    orderPrefix,
			Model:     orderPrefix,
			Relations: orderRelations,
			TTL:       ttl,
		}, logger, metrics),
		store:  store,
		logger: logger,
	}
}

func (s *OrderService) GetAllOrders(ctx context.Context, page, perPage int) (domain.Page[domain.Order], error) {
	return s.GetAll(ctx, page, perPage)
}

// GetOrderByID returns the order with its products and invoice.
func (s *OrderService) GetOrderByID(ctx context.Context, id int64) (domain.Order, error) {
	return s.GetByID(ctx, id)
}

// GetOrdersByClient lists one client's orders, newest first, with relations.
// Pages are cached in the order.client.{clientID} bucket.
func (s *OrderService) GetOrdersByClient(ctx context.Context, clientID int64, page, perPage int) (domain.Page[domain.Order], error) {
	key := s.ListKey(s.clientBucket(clientID), page, perPage)
	return resource.Remember(ctx, s.Cacher, key, func(ctx context.Context) (domain.Page[domain.Order], error) {
		q := domain.Query{}.Where("client_id", clientID).With(orderRelations...)
		return s.Paginate(ctx, q, page, perPage)
	})
}

// GetOrdersByStatus lists orders in one status, newest first, with relations.
// Pages are cached in the order.status.{status} bucket.
func (s *OrderService) GetOrdersByStatus(ctx context.Context, status domain.OrderStatus, page, perPage int) (domain.Page[domain.Order], error) {
	key := s.ListKey(s.statusBucket(status), page, perPage)
	return resource.Remember(ctx, s.Cacher, key, func(ctx context.Context) (domain.Page[domain.Order], error) {
		q := domain.Query{}.Where("status", status).With(orderRelations...)
		return s.Paginate(ctx, q, page, perPage)
	})
}

func (s *OrderService) GetMyOrders(ctx context.Context, actor domain.Actor, page, perPage int) (domain.Page[domain.Order], error) {
	if !actor.HasClient() {
		return domain.Page[domain.Order]{}, domain.ErrNoClient
	}
	return s.GetOrdersByClient(ctx, actor.ClientID, page, perPage)
}

// GetMyOrderByID returns the order only when it belongs to the actor's client.
func (s *OrderService) GetMyOrderByID(ctx context.Context, orderID int64, actor domain.Actor) (domain.Order, error) {
	return s.owned(ctx, actor, orderID)
}

// BelongsToClient loads the order through the cache and reports whether
// clientID owns it. The loaded order is returned so callers can reuse it.
func (s *OrderService) BelongsToClient(ctx context.Context, orderID, clientID int64) (domain.Order, bool, error) {
	o, err := s.GetOrderByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, false, err
	}
	return o, o.ClientID == clientID, nil
}

// CreateOrder inserts the order header and attaches its products in one
// store transaction, then returns the order with relations loaded.
func (s *OrderService) CreateOrder(ctx context.Context, in domain.NewOrder) (domain.Order, error) {
	products := in.Products
	in.Products = nil

	var created domain.Order
	err := s.store.InTx(ctx, func(tx domain.OrderStore) error {
		o, err := tx.Insert(ctx, in)
		if err != nil {
			return err
		}
		if len(products) > 0 {
			if err := tx.Attach(ctx, o.ID, domain.RelationProducts, products); err != nil {
				return err
			}
		}
		created = o
		return nil
	})
	if err != nil {
		s.logger.Error("Error while creating order",
			zap.Int64("client_id", in.ClientID),
			zap.Int("products", len(products)),
			zap.Error(err),
		)
		return domain.Order{}, err
	}

	s.invalidate(created, created.Status)
	s.logger.Info("Order created",
		zap.Int64("order_id", created.ID),
		zap.Int64("client_id", created.ClientID),
		zap.Int("products", len(products)),
	)
	return s.GetOrderByID(ctx, created.ID)
}

// CreateMyOrder creates an order owned by the actor's client. Any client id
// in the payload is ignored.
func (s *OrderService) CreateMyOrder(ctx context.Context, actor domain.Actor, in domain.NewOrder) (domain.Order, error) {
	if !actor.HasClient() {
		return domain.Order{}, domain.ErrNoClient
	}
	in.ClientID = actor.ClientID
	return s.CreateOrder(ctx, in)
}

func (s *OrderService) UpdateOrder(ctx context.Context, id int64, patch domain.OrderPatch) (domain.Order, error) {
	before, err := s.GetOrderByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	updated, err := s.Update(ctx, id, patch)
	if err != nil {
		return domain.Order{}, err
	}

	s.invalidate(before, updated.Status)
	s.logger.Info("Order updated",
		zap.Int64("order_id", id),
		zap.String("status_before", string(before.Status)),
		zap.String("status_after", string(updated.Status)),
	)
	return s.GetOrderByID(ctx, id)
}

func (s *OrderService) UpdateMyOrder(ctx context.Context, actor domain.Actor, id int64, patch domain.OrderPatch) (domain.Order, error) {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return domain.Order{}, err
	}
	return s.UpdateOrder(ctx, id, patch)
}

// DeleteOrder removes the order and reports whether a row was removed.
// A missing order is not an error.
func (s *OrderService) DeleteOrder(ctx context.Context, id int64) (bool, error) {
	before, err := s.GetOrderByID(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	deleted, err := s.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.invalidate(before, before.Status)
		s.logger.Info("Order deleted", zap.Int64("order_id", id))
	}
	return deleted, nil
}

func (s *OrderService) DeleteMyOrder(ctx context.Context, actor domain.Actor, id int64) (bool, error) {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return false, err
	}
	return s.DeleteOrder(ctx, id)
}

// Warm primes the first page of the order listing and the entity keys of
// the orders on it. It returns how many orders were loaded.
func (s *OrderService) Warm(ctx context.Context, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	page, err := s.GetAllOrders(ctx, 1, n)
	if err != nil {
		return 0, err
	}
	for i, o := range page.Items {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if _, err := s.GetOrderByID(ctx, o.ID); err != nil {
			return i, err
		}
	}
	return len(page.Items), nil
}

func (s *OrderService) owned(ctx context.Context, actor domain.Actor, orderID int64) (domain.Order, error) {
	if !actor.HasClient() {
		return domain.Order{}, domain.ErrNoClient
	}
	o, ok, err := s.BelongsToClient(ctx, orderID, actor.ClientID)
	if err != nil {
		return domain.Order{}, err
	}
	if !ok {
		s.logger.Warn("Order access denied",
			zap.Int64("order_id", orderID),
			zap.Int64("client_id", actor.ClientID),
			zap.Int64("user_id", actor.UserID),
		)
		return domain.Order{}, domain.ErrForbidden
	}
	return o, nil
}

// invalidate forgets every key a change to o can affect. statuses are the
// statuses o is listed under after the change, in addition to its current one.
func (s *OrderService) invalidate(o domain.Order, statuses ...domain.OrderStatus) {
	s.ForgetEntity(o.ID)
	s.Forget(s.Key(resource.TypeAll))
	s.Forget(s.clientBucket(o.ClientID))

	seen := []domain.OrderStatus{o.Status}
	s.Forget(s.statusBucket(o.Status))
	for _, st := range statuses {
		if st == "" || slices.Contains(seen, st) {
			continue
		}
		seen = append(seen, st)
		s.Forget(s.statusBucket(st))
	}
}

func (s *OrderService) clientBucket(clientID int64) cache.Key {
	return s.Key(typeClient).WithID(clientID)
}

func (s *OrderService) statusBucket(status domain.OrderStatus) cache.Key {
	return s.Key(typeStatus).WithSuffix(string(status))
}
