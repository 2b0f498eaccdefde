package engine

import (
	"github.com/google/btree"
)

// SortDirection flips the sign of the btree sort key: asks ascend so the
// lowest price is best, bids descend so the highest price is best.
type SortDirection int64

const (
	Ascending  SortDirection = 1
	Descending SortDirection = -1
)

// PriceLevel is the FIFO queue of all resting orders sharing one price on one
// side of a book.
type PriceLevel struct {
	Price  int64
	Orders []*Order
}

func (pl *PriceLevel) TotalQuantity() int64 {
	var total int64
	for _, o := range pl.Orders {
		total += o.Quantity
	}
	return total
}

type levelItem struct {
	level *PriceLevel
	key   int64 // price * direction, so Less is plain ascending
}

func (li *levelItem) Less(than btree.Item) bool {
	return li.key < than.(*levelItem).key
}

// PriceLevelList holds one side's price levels ordered best-first. It is not
// safe for concurrent use; the owning OrderBook serializes access.
type PriceLevelList struct {
	sort SortDirection
	tree *btree.BTree
}

func NewPriceLevelList(sort SortDirection) *PriceLevelList {
	return &PriceLevelList{
		sort: sort,
		tree: btree.New(32),
	}
}

func (l *PriceLevelList) SortKey(price int64) int64 {
	return price * int64(l.sort)
}

func (l *PriceLevelList) Len() int {
	return l.tree.Len()
}

// Get returns the level at exactly price, or nil.
func (l *PriceLevelList) Get(price int64) *PriceLevel {
	item := l.tree.Get(&levelItem{key: l.SortKey(price)})
	if item == nil {
		return nil
	}
	return item.(*levelItem).level
}

// LocateOrCreate returns the level for price, splicing in a new empty level at
// its sorted position when none exists. Duplicate prices always reuse the one
// existing level.
func (l *PriceLevelList) LocateOrCreate(price int64) *PriceLevel {
	if existing := l.Get(price); existing != nil {
		return existing
	}

	level := &PriceLevel{Price: price}
	l.tree.ReplaceOrInsert(&levelItem{level: level, key: l.SortKey(price)})
	return level
}

// Best returns the level at the side's best price, or nil when the side is
// empty. Callers must not observe empty levels here; PruneEmpty runs before
// any read.
func (l *PriceLevelList) Best() *PriceLevel {
	item := l.tree.Min()
	if item == nil {
		return nil
	}
	return item.(*levelItem).level
}

// Ascend walks levels best-first until fn returns false.
func (l *PriceLevelList) Ascend(fn func(*PriceLevel) bool) {
	l.tree.Ascend(func(item btree.Item) bool {
		return fn(item.(*levelItem).level)
	})
}

// PruneEmpty removes every level whose order queue has drained. Deleting
// during an Ascend is unsafe, so empties are collected first.
func (l *PriceLevelList) PruneEmpty() {
	var empty []int64
	l.tree.Ascend(func(item btree.Item) bool {
		li := item.(*levelItem)
		if len(li.level.Orders) == 0 {
			empty = append(empty, li.key)
		}
		return true
	})

	for _, key := range empty {
		l.tree.Delete(&levelItem{key: key})
	}
}
