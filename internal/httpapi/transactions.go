package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/TemirB/order-desk/internal/domain"
)

type createTransactionRequest struct {
	Reference string                   `json:"reference" validate:"max=64"`
	Status    domain.TransactionStatus `json:"status" validate:"required,transaction_status"`
	Amount    int64                    `json:"amount" validate:"gte=0"`
	DueDate   time.Time                `json:"due_date" validate:"required"`
}

type updateTransactionRequest struct {
	Status  *domain.TransactionStatus `json:"status" validate:"omitempty,transaction_status"`
	Amount  *int64                    `json:"amount" validate:"omitempty,gte=0"`
	DueDate *time.Time                `json:"due_date"`
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := pagination(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	txs, err := s.transactions.GetAllTransactions(r.Context(), page, perPage)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "transactions", txs)
}

func (s *Server) listTransactionsByStatus(w http.ResponseWriter, r *http.Request) {
	status := domain.TransactionStatus(chi.URLParam(r, "status"))
	if !status.Valid() {
		s.fail(w, r, invalidf("unknown transaction status %q", status))
		return
	}
	txs, err := s.transactions.GetTransactionsByStatus(r.Context(), status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	ok(w, http.StatusOK, "transactions by status", txs)
}

func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tx, err := s.transactions.GetTransactionByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "transaction", tx)
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	tx, err := s.transactions.CreateTransaction(r.Context(), domain.NewTransaction{
		Reference: req.Reference,
		Status:    req.Status,
		Amount:    req.Amount,
		DueDate:   req.DueDate,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, "transaction created", tx)
}

func (s *Server) updateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req updateTransactionRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	tx, err := s.transactions.UpdateTransaction(r.Context(), id, domain.TransactionPatch{
		Status:  req.Status,
		Amount:  req.Amount,
		DueDate: req.DueDate,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "transaction updated", tx)
}

func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	deleted, err := s.transactions.DeleteTransaction(r.Context(), id)
	s.deleted(w, r, "transaction deleted", deleted, err)
}
