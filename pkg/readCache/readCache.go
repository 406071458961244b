// Package readCache keeps contract read results until something that could
// change them happens: an account switch, a network switch, or a confirmed write.
package readCache

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/greenstake/greenstake-go/pkg/contracts"
)

// Key identifies one read.
type Key struct {
	Contract contracts.Name
	Method   string
	id       string
	accounts []common.Address
}

// NewKey builds the key for method on contract with args. Address arguments tie
// the entry to those accounts.
func NewKey(contract contracts.Name, method string, args ...interface{}) Key {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s.%s(", contract, method)
	var accounts []common.Address
	for i, arg := range args {
		if i > 0 {
			sb.WriteString(",")
		}
		switch v := arg.(type) {
		case common.Address:
			accounts = append(accounts, v)
			sb.WriteString(v.Hex())
		case *common.Address:
			if v != nil {
				accounts = append(accounts, *v)
			}
			fmt.Fprintf(&sb, "%v", v)
		default:
			fmt.Fprintf(&sb, "%v", v)
		}
	}
	sb.WriteString(")")
	return Key{Contract: contract, Method: method, id: sb.String(), accounts: accounts}
}

func (k Key) String() string {
	return k.id
}

type entry struct {
	key    Key
	values []interface{}
}

// Cache is safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	generation uint64
	entries    map[string]entry
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

// Generation is read before issuing a network read and passed to Put, so a
// result fetched across an invalidation is dropped.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Get returns the cached values for key.
func (c *Cache) Get(key Key) ([]interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.id]
	if !ok {
		return nil, false
	}
	return e.values, true
}

// Put stores values for key unless the cache was invalidated since generation.
func (c *Cache) Put(generation uint64, key Key, values []interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return false
	}
	c.entries[key.id] = entry{key: key, values: values}
	return true
}

// Len returns the number of cached reads.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// InvalidateAccounts drops every read keyed by an account.
func (c *Cache) InvalidateAccounts() {
	c.drop(func(e entry) bool { return len(e.key.accounts) > 0 })
}

// InvalidateContracts drops every read of the given contracts.
func (c *Cache) InvalidateContracts(names ...contracts.Name) {
	set := make(map[contracts.Name]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	c.drop(func(e entry) bool {
		_, ok := set[e.key.Contract]
		return ok
	})
}

// InvalidateAll empties the cache.
func (c *Cache) InvalidateAll() {
	c.drop(func(entry) bool { return true })
}

func (c *Cache) drop(match func(entry) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	for id, e := range c.entries {
		if match(e) {
			delete(c.entries, id)
		}
	}
}
