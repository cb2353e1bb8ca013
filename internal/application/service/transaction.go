package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/TemirB/order-desk/internal/application/resource"
	"github.com/TemirB/order-desk/internal/cache"
	"github.com/TemirB/order-desk/internal/domain"
	"github.com/TemirB/order-desk/internal/observability"
)

const transactionPrefix = "transaction"

// TransactionService caches status listings under one key per status,
// transaction.status.{status}, holding the whole listing ordered by due date.
type TransactionService struct {
	*resource.Service[domain.Transaction, domain.NewTransaction, domain.TransactionPatch]

	logger *zap.Logger
}

func NewTransactionService(store domain.TransactionStore, c resource.Cache, ttl time.Duration, logger *zap.Logger, metrics observability.Metrics) *TransactionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("service", transactionPrefix))
	return &TransactionService{
		Service: resource.New[domain.Transaction, domain.NewTransaction, domain.TransactionPatch](store, c, resource.Options{
			Prefix: transactionPrefix,
			Model:  transactionPrefix,
			TTL:    ttl,
		}, logger, metrics),
		logger: logger,
	}
}

func (s *TransactionService) GetAllTransactions(ctx context.Context, page, perPage int) (domain.Page[domain.Transaction], error) {
	return s.GetAll(ctx, page, perPage)
}

func (s *TransactionService) GetTransactionByID(ctx context.Context, id int64) (domain.Transaction, error) {
	return s.GetByID(ctx, id)
}

// GetTransactionsByStatus returns every transaction in status, earliest due
// date first.
func (s *TransactionService) GetTransactionsByStatus(ctx context.Context, status domain.TransactionStatus) ([]domain.Transaction, error) {
	return resource.Remember(ctx, s.Cacher, s.statusKey(status), func(ctx context.Context) ([]domain.Transaction, error) {
		q := domain.Query{}.Where("status", status).OrderBy("due_date", domain.Asc)
		page, err := s.Paginate(ctx, q, 0, 0)
		if err != nil {
			return nil, err
		}
		return page.Items, nil
	})
}

func (s *TransactionService) CreateTransaction(ctx context.Context, in domain.NewTransaction) (domain.Transaction, error) {
	created, err := s.Create(ctx, in)
	if err != nil {
		return domain.Transaction{}, err
	}
	s.invalidate(created.ID, created.Status)
	s.logger.Info("Transaction created",
		zap.Int64("transaction_id", created.ID),
		zap.String("status", string(created.Status)),
	)
	return created, nil
}

func (s *TransactionService) UpdateTransaction(ctx context.Context, id int64, patch domain.TransactionPatch) (domain.Transaction, error) {
	before, err := s.GetTransactionByID(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	updated, err := s.Update(ctx, id, patch)
	if err != nil {
		return domain.Transaction{}, err
	}
	s.invalidate(id, before.Status, updated.Status)
	s.logger.Info("Transaction updated",
		zap.Int64("transaction_id", id),
		zap.String("status_before", string(before.Status)),
		zap.String("status_after", string(updated.Status)),
	)
	return updated, nil
}

// DeleteTransaction removes the transaction and reports whether a row was
// removed. A missing transaction is not an error.
func (s *TransactionService) DeleteTransaction(ctx context.Context, id int64) (bool, error) {
	before, err := s.GetTransactionByID(ctx, id)
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
		s.invalidate(id, before.Status)
		s.logger.Info("Transaction deleted", zap.Int64("transaction_id", id))
	}
	return deleted, nil
}

func (s *TransactionService) invalidate(id int64, statuses ...domain.TransactionStatus) {
	s.ForgetEntity(id)
	s.Forget(s.Key(resource.TypeAll))
	for i, st := range statuses {
		if i > 0 && st == statuses[i-1] {
			continue
		}
		s.Forget(s.statusKey(st))
	}
}

func (s *TransactionService) statusKey(status domain.TransactionStatus) cache.Key {
	return s.Key(typeStatus).WithSuffix(string(status))
}
