package domain

import "time"

type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "pending"
	TransactionPaid     TransactionStatus = "paid"
	TransactionFailed   TransactionStatus = "failed"
	TransactionRefunded TransactionStatus = "refunded"
)

var TransactionStatuses = []TransactionStatus{
	TransactionPending, TransactionPaid, TransactionFailed, TransactionRefunded,
}

func (s TransactionStatus) Valid() bool {
	for _, st := range TransactionStatuses {
		if s == st {
			return true
		}
	}
	return false
}

type Transaction struct {
	ID        int64             `json:"id"`
	Reference string            `json:"reference"`
	Status    TransactionStatus `json:"status"`
	Amount    int64             `json:"amount"`
	DueDate   time.Time         `json:"due_date"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type NewTransaction struct {
	Reference string            `json:"reference"`
	Status    TransactionStatus `json:"status"`
	Amount    int64             `json:"amount"`
	DueDate   time.Time         `json:"due_date"`
}

type TransactionPatch struct {
	Status  *TransactionStatus `json:"status,omitempty"`
	Amount  *int64             `json:"amount,omitempty"`
	DueDate *time.Time         `json:"due_date,omitempty"`
}
