package reader

import (
	"slices"

	"github.com/lysyi3m/feedsub/app/feed"
)

// Order directions discovered from consecutive item dates.
const (
	orderUnknown     = 0
	orderNewestFirst = -1
	orderOldestFirst = 1
)

// cycle is the per-read state of the dedup driver. It receives tokenizer
// events directly and is discarded once finalized.
type cycle struct {
	history   *History
	first     bool
	readEvery bool

	// gate runs once, on the first item, with the meta seen so far. Any
	// status other than StatusCompleted halts the cycle.
	gate func(meta map[string][]string) Status

	meta    map[string][]string
	started bool
	status  Status

	order     int
	buffered  []*feed.Item // items awaiting order discovery
	newItems  []*feed.Item // in arrival order
	pending   []*feed.Item // oldest-first items seen before any known item
	absorbed  []string     // pending fingerprints remembered but not reported
	seen      map[string]bool
	foundPrev bool

	stopped    bool // early termination fired
	ended      bool
	received   int
	classified int
}

func newCycle(history *History, first, readEvery bool) *cycle {
	return &cycle{
		history:   history,
		first:     first,
		readEvery: readEvery,
		meta:      make(map[string][]string),
		seen:      make(map[string]bool),
		status:    StatusCompleted,
	}
}

var _ feed.Sink = (*cycle)(nil)

func (c *cycle) Meta(name string, values ...string) {
	if _, ok := c.meta[name]; !ok {
		c.meta[name] = values
	}
}

func (c *cycle) Item(item *feed.Item) bool {
	if c.halted() {
		return false
	}
	c.received++

	if !c.started {
		c.started = true
		if c.gate != nil {
			if status := c.gate(c.meta); status != StatusCompleted {
				c.status = status
				return false
			}
		}
	}

	return c.add(item)
}

func (c *cycle) halted() bool {
	return c.stopped || c.ended || c.status != StatusCompleted
}

func (c *cycle) add(item *feed.Item) bool {
	if c.order != orderUnknown {
		return c.classify(item)
	}

	c.buffered = append(c.buffered, item)
	if len(c.buffered) == 1 {
		return true
	}

	delta := item.Date().Sub(c.buffered[0].Date())
	switch {
	case delta < 0:
		c.order = orderNewestFirst
	case delta > 0:
		c.order = orderOldestFirst
	default:
		return true
	}

	return c.drain()
}

// drain classifies the items held back during order discovery.
func (c *cycle) drain() bool {
	buffered := c.buffered
	c.buffered = nil
	for _, item := range buffered {
		if !c.classify(item) {
			return false
		}
	}
	return true
}

func (c *cycle) classify(item *feed.Item) bool {
	c.classified++
	if c.order == orderOldestFirst {
		c.newer(item)
		return true
	}
	return c.older(item)
}

// older handles newest-first feeds: the first known item means everything
// after it is known too.
func (c *cycle) older(item *feed.Item) bool {
	fingerprint := item.Fingerprint()
	if c.seen[fingerprint] {
		return true
	}

	if c.first || !c.history.Contains(fingerprint) {
		c.accept(item, fingerprint)
		return true
	}

	if c.readEvery {
		return true
	}

	c.stopped = true
	return false
}

// newer handles oldest-first feeds. Items after the last known one are new.
// Unknown items ahead of every known one are held in pending until the end
// of the document shows whether any known item exists at all. When one
// does, the pending items are older than it: they are remembered in History
// without being reported.
func (c *cycle) newer(item *feed.Item) {
	fingerprint := item.Fingerprint()
	if c.seen[fingerprint] {
		return
	}

	if c.first {
		c.accept(item, fingerprint)
		return
	}

	known := c.history.Contains(fingerprint)
	switch {
	case known:
		c.foundPrev = true
		for _, held := range c.pending {
			c.absorbed = append(c.absorbed, held.Fingerprint())
		}
		c.pending = nil
	case c.foundPrev:
		c.accept(item, fingerprint)
	default:
		c.seen[fingerprint] = true
		c.pending = append(c.pending, item)
	}
}

func (c *cycle) accept(item *feed.Item, fingerprint string) {
	c.seen[fingerprint] = true
	c.newItems = append(c.newItems, item)
}

// finalize ends the cycle once. It returns the new items oldest first and
// their fingerprints newest first, the order History expects.
func (c *cycle) finalize() ([]*feed.Item, []string, bool) {
	if c.ended {
		return nil, nil, false
	}
	c.ended = true

	if c.status != StatusCompleted {
		return nil, nil, true
	}

	if !c.stopped && c.order == orderUnknown && len(c.buffered) > 0 {
		// Order never showed itself; treat the document as newest first.
		c.order = orderNewestFirst
		c.drain()
	}

	if c.order == orderOldestFirst && !c.foundPrev {
		c.newItems = append(c.pending, c.newItems...)
		c.pending = nil
	}

	items := slices.Clone(c.newItems)
	if c.order != orderOldestFirst {
		slices.Reverse(items)
	}

	fingerprints := make([]string, 0, len(items)+len(c.absorbed))
	for i := len(items) - 1; i >= 0; i-- {
		fingerprints = append(fingerprints, items[i].Fingerprint())
	}
	for i := len(c.absorbed) - 1; i >= 0; i-- {
		fingerprints = append(fingerprints, c.absorbed[i])
	}

	return items, fingerprints, true
}
