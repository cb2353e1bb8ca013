// Package httpapi exposes the order and transaction services over HTTP.
// Every response uses one envelope: {"success", "message", "data"}.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/TemirB/order-desk/internal/domain"
	"github.com/TemirB/order-desk/internal/observability"
)

//go:generate mockgen -source internal/httpapi/httpapi.go -destination=internal/httpapi/httpapi_mock_test.go -package=httpapi

type OrderService interface {
	GetAllOrders(ctx context.Context, page, perPage int) (domain.Page[domain.Order], error)
	GetOrderByID(ctx context.Context, id int64) (domain.Order, error)
	GetOrdersByClient(ctx context.Context, clientID int64, page, perPage int) (domain.Page[domain.Order], error)
	GetOrdersByStatus(ctx context.Context, status domain.OrderStatus, page, perPage int) (domain.Page[domain.Order], error)
	GetMyOrders(ctx context.Context, actor domain.Actor, page, perPage int) (domain.Page[domain.Order], error)
	GetMyOrderByID(ctx context.Context, orderID int64, actor domain.Actor) (domain.Order, error)
	CreateOrder(ctx context.Context, in domain.NewOrder) (domain.Order, error)
	CreateMyOrder(ctx context.Context, actor domain.Actor, in domain.NewOrder) (domain.Order, error)
	UpdateOrder(ctx context.Context, id int64, patch domain.OrderPatch) (domain.Order, error)
	UpdateMyOrder(ctx context.Context, actor domain.Actor, id int64, patch domain.OrderPatch) (domain.Order, error)
	DeleteOrder(ctx context.Context, id int64) (bool, error)
	DeleteMyOrder(ctx context.Context, actor domain.Actor, id int64) (bool, error)
}

type TransactionService interface {
	GetAllTransactions(ctx context.Context, page, perPage int) (domain.Page[domain.Transaction], error)
	GetTransactionByID(ctx context.Context, id int64) (domain.Transaction, error)
	GetTransactionsByStatus(ctx context.Context, status domain.TransactionStatus) ([]domain.Transaction, error)
	CreateTransaction(ctx context.Context, in domain.NewTransaction) (domain.Transaction, error)
	UpdateTransaction(ctx context.Context, id int64, patch domain.TransactionPatch) (domain.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) (bool, error)
}

type Server struct {
	orders       OrderService
	transactions TransactionService
	validate     *validator.Validate
	logger       *zap.Logger
	metrics      observability.Metrics
	gatherer     prometheus.Gatherer
	router       chi.Router
}

type Option func(*Server)

// WithGatherer serves the gatherer's metrics on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

func New(orders OrderService, transactions TransactionService, logger *zap.Logger, metrics observability.Metrics, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoop()
	}
	s := &Server{
		orders:       orders,
		transactions: transactions,
		validate:     newValidator(),
		logger:       logger,
		metrics:      metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		AccessLog(s.logger),
		middleware.Recoverer,
		ServerTimingApp(s.metrics),
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, envelope{Success: true, Message: "ok"})
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", s.listOrders)
		r.Post("/", s.createOrder)
		r.Get("/client/{clientID}", s.listClientOrders)
		r.Get("/status/{status}", s.listOrdersByStatus)
		r.Get("/{id}", s.getOrder)
		r.Put("/{id}", s.updateOrder)
		r.Patch("/{id}", s.updateOrder)
		r.Delete("/{id}", s.deleteOrder)
	})

	r.Route("/my/orders", func(r chi.Router) {
		r.Get("/", s.listMyOrders)
		r.Post("/", s.createMyOrder)
		r.Get("/{id}", s.getMyOrder)
		r.Put("/{id}", s.updateMyOrder)
		r.Patch("/{id}", s.updateMyOrder)
		r.Delete("/{id}", s.deleteMyOrder)
	})

	r.Route("/transactions", func(r chi.Router) {
		r.Get("/", s.listTransactions)
		r.Post("/", s.createTransaction)
		r.Get("/status/{status}", s.listTransactionsByStatus)
		r.Get("/{id}", s.getTransaction)
		r.Put("/{id}", s.updateTransaction)
		r.Patch("/{id}", s.updateTransaction)
		r.Delete("/{id}", s.deleteTransaction)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{Message: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{Message: "method not allowed"})
	})

	s.router = r
}

func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is done, then shuts down gracefully
// within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
