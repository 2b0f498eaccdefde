package engine

import (
	"sort"
	"sync"
)

// Exchange owns one OrderBook per market. Books are created explicitly when a
// market is created and live for the process lifetime. Different books are
// fully independent; only the registry map itself is guarded here.
type Exchange struct {
	books map[string]*OrderBook
	mu    sync.RWMutex
}

func NewExchange() *Exchange {
	return &Exchange{
		books: make(map[string]*OrderBook),
	}
}

// CreateBook registers a new empty book for marketID.
func (e *Exchange) CreateBook(marketID string) (*OrderBook, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.books[marketID]; exists {
		return nil, ErrBookExists
	}

	book := NewOrderBook(marketID)
	e.books[marketID] = book
	return book, nil
}

// Book looks up the book for marketID.
func (e *Exchange) Book(marketID string) (*OrderBook, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	book, exists := e.books[marketID]
	if !exists {
		return nil, ErrBookNotFound
	}
	return book, nil
}

// Books returns a point-in-time copy of the registry.
func (e *Exchange) Books() map[string]*OrderBook {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snapshot := make(map[string]*OrderBook, len(e.books))
	for id, book := range e.books {
		snapshot[id] = book
	}
	return snapshot
}

// UserTrades gathers one user's trades across every market, time-sorted.
// This is a read-only projection over each book's log.
func (e *Exchange) UserTrades(userID string) []UserTrade {
	books := e.Books()

	var out []UserTrade
	for _, book := range books {
		out = append(out, book.userTrades(userID)...)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out
}
