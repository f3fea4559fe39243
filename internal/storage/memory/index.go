// Package memory provides the in-memory key-value store for nox.
package memory

import (
	"time"

	"github.com/google/btree"
)

// indexItem is one entry in the expiration index, ordered by deadline
// with the entry id as tie-breaker. Entries sharing a deadline are
// purged in id order, which callers must not rely on.
type indexItem struct {
	when time.Time
	id   uint64
	key  string
}

func lessIndexItem(a, b indexItem) bool {
	if !a.when.Equal(b.when) {
		return a.when.Before(b.when)
	}
	return a.id < b.id
}

// expiryIndex mirrors every entry that carries a deadline. It is
// mutated only under the store mutex, in the same critical section as
// the entries map.
type expiryIndex struct {
	tree *btree.BTreeG[indexItem]
}

func newExpiryIndex() *expiryIndex {
	return &expiryIndex{tree: btree.NewG(2, lessIndexItem)}
}

func (x *expiryIndex) add(when time.Time, id uint64, key string) {
	x.tree.ReplaceOrInsert(indexItem{when: when, id: id, key: key})
}

func (x *expiryIndex) remove(when time.Time, id uint64) {
	x.tree.Delete(indexItem{when: when, id: id})
}

// min returns the soonest-expiring item.
func (x *expiryIndex) min() (indexItem, bool) {
	return x.tree.Min()
}

func (x *expiryIndex) len() int {
	return x.tree.Len()
}
