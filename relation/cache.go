package relation

import (
	"sync"

	"github.com/wippyai/recast/stable"
)

type pairKey struct {
	src, dst stable.TypeID
}

// Cache memoizes certificates per ordered pair. Reads take a shared lock;
// insertion is insert-if-absent, so concurrent first-time derivations of the
// same pair are idempotent. Only positive certificates are stored — absence
// of a relation is always re-derived, never cached as a negative.
type Cache struct {
	mu    sync.RWMutex
	certs map[pairKey]*Certificate
	bySrc map[stable.TypeID][]*Certificate
	byDst map[stable.TypeID][]*Certificate
}

// NewCache creates an empty certificate cache.
func NewCache() *Cache {
	return &Cache{
		certs: make(map[pairKey]*Certificate),
		bySrc: make(map[stable.TypeID][]*Certificate),
		byDst: make(map[stable.TypeID][]*Certificate),
	}
}

// Get returns the cached certificate for the ordered pair.
func (c *Cache) Get(src, dst stable.TypeID) (*Certificate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cert, ok := c.certs[pairKey{src, dst}]
	return cert, ok
}

// Len returns the number of cached certificates.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.certs)
}

// putIfAbsent inserts cert unless the pair is already present and returns
// the winning certificate. Callers must only pass certificates with at least
// one true relation.
func (c *Cache) putIfAbsent(cert *Certificate) (*Certificate, bool) {
	key := pairKey{cert.Source, cert.Target}
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.certs[key]; ok {
		return existing, false
	}
	c.certs[key] = cert
	c.bySrc[cert.Source] = append(c.bySrc[cert.Source], cert)
	c.byDst[cert.Target] = append(c.byDst[cert.Target], cert)
	return cert, true
}

// from returns a snapshot of certificates whose source is id.
func (c *Cache) from(id stable.TypeID) []*Certificate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Certificate, len(c.bySrc[id]))
	copy(out, c.bySrc[id])
	return out
}

// to returns a snapshot of certificates whose target is id.
func (c *Cache) to(id stable.TypeID) []*Certificate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Certificate, len(c.byDst[id]))
	copy(out, c.byDst[id])
	return out
}
