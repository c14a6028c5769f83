package stream

import (
	"context"
	"sync"
	"time"

	"pulabank.org/internal/ledger"
)

// TransactionEvent is the wire form of a committed ledger transaction for
// live consumers (SSE clients, dashboards).
type TransactionEvent struct {
	AccountNumber string                 `json:"account_number"`
	Kind          ledger.TransactionKind `json:"kind"`
	Amount        ledger.Money           `json:"amount"`
	BalanceAfter  ledger.Money           `json:"balance_after"`
	AuthorizedBy  string                 `json:"authorized_by"`
	Timestamp     time.Time              `json:"timestamp"`
}

// Stream fan-outs transaction events to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan TransactionEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan TransactionEvent)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan TransactionEvent {
	ch := make(chan TransactionEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// PublishTransaction satisfies ledger.TransactionPublisher. Slow subscribers
// are dropped rather than ever blocking a ledger commit.
func (s *Stream) PublishTransaction(tx ledger.Transaction) {
	s.publish(TransactionEvent{
		AccountNumber: tx.AccountNumber,
		Kind:          tx.Kind,
		Amount:        tx.Amount,
		BalanceAfter:  tx.BalanceAfter,
		AuthorizedBy:  tx.AuthorizedBy,
		Timestamp:     tx.CreatedAt,
	})
}

func (s *Stream) publish(evt TransactionEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
