// Package handler applies inbound Kafka events to the domain services.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/TemirB/order-desk/internal/config"
	"github.com/TemirB/order-desk/internal/domain"
	"github.com/TemirB/order-desk/internal/pkg/retry"
)

//go:generate mockgen -source internal/application/handler/handler.go -destination=internal/application/handler/handler_mock_test.go -package=handler

var (
	ErrApply       = errors.New("apply transaction event failed")
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// Op is the kind of change a transaction event carries.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// TransactionEvent is one message of the transaction feed. ID is required
// for update and delete.
type TransactionEvent struct {
	Op          Op                `json:"op" validate:"required,oneof=create update delete"`
	ID          int64             `json:"id,omitempty" validate:"required_unless=Op create,gte=0"`
	Transaction TransactionFields `json:"transaction"`
}

type TransactionFields struct {
	Reference string                    `json:"reference,omitempty" validate:"max=64"`
	Status    *domain.TransactionStatus `json:"status,omitempty"`
	Amount    *int64                    `json:"amount,omitempty" validate:"omitempty,gte=0"`
	DueDate   *time.Time                `json:"due_date,omitempty"`
}

type TransactionService interface {
	CreateTransaction(ctx context.Context, in domain.NewTransaction) (domain.Transaction, error)
	UpdateTransaction(ctx context.Context, id int64, patch domain.TransactionPatch) (domain.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) (bool, error)
}

type brk interface {
	Allow() error
	Success()
	Failure()
}

// TransactionFeed applies transaction events through the service, so every
// write crosses the same invalidation boundary as the HTTP API.
type TransactionFeed struct {
	service     TransactionService
	breaker     brk
	validate    *validator.Validate
	logger      *zap.Logger
	retryPolicy config.Retry
}

func NewTransactionFeed(service TransactionService, breaker brk, retryPolicy config.Retry, logger *zap.Logger) *TransactionFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionFeed{
		service:     service,
		breaker:     breaker,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger,
		retryPolicy: retryPolicy,
	}
}

// Handle is called by the consumer for one message; the consumer commits the
// offset after nil. Malformed events are logged and dropped with nil, since
// redelivery cannot fix them; they never reach the breaker.
func (h *TransactionFeed) Handle(ctx context.Context, message kafkago.Message) error {
	fields := []zap.Field{
		zap.Int("partition", message.Partition),
		zap.Int64("offset", message.Offset),
	}

	// decoding comes first: a dropped event must not take a half-open slot
	ev, err := h.decode(message.Value)
	if err != nil {
		h.logger.Error("dropping malformed transaction event", append(fields, zap.Error(err))...)
		return nil
	}
	fields = append(fields, zap.String("op", string(ev.Op)), zap.Int64("transaction_id", ev.ID))

	if err := h.breaker.Allow(); err != nil {
		h.logger.Warn("circuit breaker is open", append(fields, zap.Error(err))...)
		return fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	}

	err = retry.Do(ctx, h.retryPolicy, func() error {
		err := h.apply(ctx, ev)
		if domain.IsNotFound(err) {
			return retry.Permanent(err)
		}
		return err
	})
	switch {
	case err == nil:
	case domain.IsNotFound(err):
		h.breaker.Success()
		h.logger.Warn("transaction event refers to a missing transaction, skipped", fields...)
		return nil
	default:
		h.breaker.Failure()
		h.logger.Error("transaction event failed after retries", append(fields, zap.Error(err))...)
		return fmt.Errorf("%w: %w", ErrApply, err)
	}

	h.breaker.Success()
	h.logger.Info("transaction event applied", fields...)
	return nil
}

func (h *TransactionFeed) decode(value []byte) (TransactionEvent, error) {
	var ev TransactionEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return TransactionEvent{}, fmt.Errorf("bad json: %w", err)
	}
	if err := h.validate.Struct(ev); err != nil {
		return TransactionEvent{}, err
	}
	if st := ev.Transaction.Status; st != nil && !st.Valid() {
		return TransactionEvent{}, fmt.Errorf("unknown status %q", *st)
	}
	if ev.Op == OpCreate && ev.Transaction.Status == nil {
		return TransactionEvent{}, errors.New("create event without status")
	}
	return ev, nil
}

func (h *TransactionFeed) apply(ctx context.Context, ev TransactionEvent) error {
	t := ev.Transaction
	switch ev.Op {
	case OpCreate:
		in := domain.NewTransaction{Reference: t.Reference, Status: *t.Status}
		if t.Amount != nil {
			in.Amount = *t.Amount
		}
		if t.DueDate != nil {
			in.DueDate = *t.DueDate
		}
		_, err := h.service.CreateTransaction(ctx, in)
		return err
	case OpUpdate:
		_, err := h.service.UpdateTransaction(ctx, ev.ID, domain.TransactionPatch{
			Status:  t.Status,
			Amount:  t.Amount,
			DueDate: t.DueDate,
		})
		return err
	case OpDelete:
		_, err := h.service.DeleteTransaction(ctx, ev.ID)
		return err
	default:
		return fmt.Errorf("unknown op %q", ev.Op)
	}
}
