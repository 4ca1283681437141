package domain

import (
	"maps"
	"sync"
)

// MyBids maps a price key to the bid expiration in epoch millis. An entry
// means we believe a live bid exists at that price; it is never read back
// from the exchange.
type MyBids map[string]int64

// Collection is the shared state of one tracked collection.
//
// The pool ladder, floor, per-wallet bids, the in-flight flag and the queued
// update slot are guarded together by mu.
type Collection struct {
	ContractAddress string
	Slug            string
	Name            string
	Config          CollectionConfig

	mu       sync.Mutex
	bids     Ladder
	floor    *float64
	myBids   map[string]MyBids
	running  bool
	queued   *UpdatedBids
	coalesce int
}

// NewCollection creates an idle collection with no known bids.
func NewCollection(address, slug, name string, cfg CollectionConfig) *Collection {
	return &Collection{
		ContractAddress: NormalizeAddress(address),
		Slug:            slug,
		Name:            name,
		Config:          cfg,
		myBids:          make(map[string]MyBids),
	}
}

// Label returns the slug, or the address when no slug is known.
func (c *Collection) Label() string {
	if c.Slug != "" {
		return c.Slug
	}
	return c.ContractAddress
}

// ApplyUpdate replaces the ladder and floor with the snapshot in u.
func (c *Collection) ApplyUpdate(u UpdatedBids) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bids = append(Ladder(nil), u.Bids...)
	if u.Floor != nil {
		f := *u.Floor
		c.floor = &f
	} else {
		c.floor = nil
	}
}

// Snapshot returns a copy of the current ladder and floor.
func (c *Collection) Snapshot() (Ladder, *float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ladder := append(Ladder(nil), c.bids...)
	if c.floor == nil {
		return ladder, nil
	}
	f := *c.floor
	return ladder, &f
}

// MyBids returns a copy of the wallet's bids.
func (c *Collection) MyBids(wallet string) MyBids {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.walletBids(wallet))
}

// HasBid reports whether the wallet believes it holds a bid at price.
func (c *Collection) HasBid(wallet string, price float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.walletBids(wallet)[PriceKey(price)]
	return ok
}

// SetBid records a bid at price expiring at expiresAt (epoch millis).
func (c *Collection) SetBid(wallet string, price float64, expiresAt int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.walletBids(wallet)[PriceKey(price)] = expiresAt
}

// DropBid forgets the bid at price.
func (c *Collection) DropBid(wallet string, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.walletBids(wallet), PriceKey(price))
}

// RestoreBids replaces the wallet's bids, used on warm start.
func (c *Collection) RestoreBids(wallet string, bids MyBids) {
	c.mu.Lock()
	defer c.mu.Unlock()
	restored := make(MyBids, len(bids))
	maps.Copy(restored, bids)
	c.myBids[NormalizeAddress(wallet)] = restored
}

// PruneExpired drops entries whose expiration is at or before nowMillis and
// returns how many were removed.
func (c *Collection) PruneExpired(wallet string, nowMillis int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	bids := c.walletBids(wallet)
	removed := 0
	for k, exp := range bids {
		if exp <= nowMillis {
			delete(bids, k)
			removed++
		}
	}
	return removed
}

// BeginPass marks the collection busy. When a pass is already in flight the
// update replaces whatever was queued and false is returned.
func (c *Collection) BeginPass(u UpdatedBids) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		if c.queued != nil {
			c.coalesce++
		}
		c.queued = &u
		return false
	}
	c.running = true
	return true
}

// EndPass hands over the queued update if one arrived while running, keeping
// the collection busy. Otherwise it clears the in-flight flag.
func (c *Collection) EndPass() (UpdatedBids, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queued != nil {
		u := *c.queued
		c.queued = nil
		return u, true
	}
	c.running = false
	return UpdatedBids{}, false
}

// Running reports whether a reconciliation pass is in flight.
func (c *Collection) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Coalesced returns how many queued updates were overwritten before running.
func (c *Collection) Coalesced() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.coalesce
}

// walletBids returns the wallet's map, creating it on first use. Caller holds mu.
func (c *Collection) walletBids(wallet string) MyBids {
	key := NormalizeAddress(wallet)
	bids, ok := c.myBids[key]
	if !ok {
		bids = make(MyBids)
		c.myBids[key] = bids
	}
	return bids
}
