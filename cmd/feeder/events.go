package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/TemirB/order-desk/internal/application/handler"
	"github.com/TemirB/order-desk/internal/domain"
)

// eventSource produces a plausible mix of events: mostly creates, then
// status moves and the odd delete of transactions it created earlier.
type eventSource struct {
	mu      sync.Mutex
	rnd     *rand.Rand
	created int64
	now     func() time.Time
}

func newEventSource(seed int64) *eventSource {
	return &eventSource{rnd: rand.New(rand.NewSource(seed)), now: time.Now}
}

func (s *eventSource) event() handler.TransactionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	roll := s.rnd.Intn(100)
	switch {
	case s.created == 0 || roll < 60:
		s.created++
		status := domain.TransactionPending
		amount := int64(100 + s.rnd.Intn(100000))
		due := s.now().UTC().Add(time.Duration(1+s.rnd.Intn(30)) * 24 * time.Hour).Truncate(time.Second)
		return handler.TransactionEvent{
			Op: handler.OpCreate,
			Transaction: handler.TransactionFields{
				Reference: fmt.Sprintf("INV-%06d", s.rnd.Intn(1000000)),
				Status:    &status,
				Amount:    &amount,
				DueDate:   &due,
			},
		}
	case roll < 95:
		status := domain.TransactionStatuses[s.rnd.Intn(len(domain.TransactionStatuses))]
		return handler.TransactionEvent{
			Op:          handler.OpUpdate,
			ID:          1 + s.rnd.Int63n(s.created),
			Transaction: handler.TransactionFields{Status: &status},
		}
	default:
		return handler.TransactionEvent{Op: handler.OpDelete, ID: 1 + s.rnd.Int63n(s.created)}
	}
}

// next encodes an event. Messages are keyed by transaction id so updates of
// one transaction land on one partition.
func (s *eventSource) next() (kafkago.Message, error) {
	ev := s.event()
	value, err := json.Marshal(ev)
	if err != nil {
		return kafkago.Message{}, err
	}
	key := "new"
	if ev.ID > 0 {
		key = strconv.FormatInt(ev.ID, 10)
	}
	return kafkago.Message{Key: []byte(key), Value: value, Time: s.now()}, nil
}
