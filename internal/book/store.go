package book

import (
	"sync/atomic"

	"github.com/rohidaprem/crypto-order-book/internal/domain"
)

// Store owns exactly one live OrderBook at a time. The book is an immutable
// value replaced by an atomic pointer swap, so a reader never observes a mix
// of old and new levels and no locking is needed on the read path. Prior
// versions are discarded, not retained.
type Store struct {
	current atomic.Pointer[domain.OrderBook]
}

// NewStore creates an empty Store. Reads before the first successful Replace
// return an empty book with a zero timestamp.
func NewStore() *Store {
	return &Store{}
}

// Replace validates the candidate book and, on success, atomically swaps it
// in as the current book. On validation failure the previous book remains
// live and the returned *domain.ValidationError names the violated
// invariant. The stored book is a private copy; later changes to the
// caller's slices cannot affect committed state.
func (s *Store) Replace(b domain.OrderBook) error {
	if verr := Validate(b); verr != nil {
		return verr
	}

	committed := domain.OrderBook{
		Symbol:    b.Symbol,
		Bids:      copyLevels(b.Bids),
		Asks:      copyLevels(b.Asks),
		Timestamp: b.Timestamp,
	}
	s.current.Store(&committed)
	return nil
}

// ReadTop returns the first n levels of each side of the most recently
// committed book plus its timestamp. It never blocks on the update cycle.
// Before any commit it returns an empty book.
func (s *Store) ReadTop(n int) domain.OrderBook {
	cur := s.current.Load()
	if cur == nil {
		return domain.OrderBook{}
	}

	top := domain.OrderBook{
		Symbol:    cur.Symbol,
		Timestamp: cur.Timestamp,
	}
	top.Bids = copyLevels(cur.Bids[:min(n, len(cur.Bids))])
	top.Asks = copyLevels(cur.Asks[:min(n, len(cur.Asks))])
	return top
}

// ReadFull returns all levels of the current book. The simulator uses it so
// large orders can walk past the top-N levels.
func (s *Store) ReadFull() domain.OrderBook {
	cur := s.current.Load()
	if cur == nil {
		return domain.OrderBook{}
	}
	return domain.OrderBook{
		Symbol:    cur.Symbol,
		Bids:      copyLevels(cur.Bids),
		Asks:      copyLevels(cur.Asks),
		Timestamp: cur.Timestamp,
	}
}
