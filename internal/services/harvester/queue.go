package harvester

// Target is one queued per-conversation fetch
type Target struct {
	ConversationID string
	URL            string
}

// CrawlQueue is a FIFO of fetch targets with URL-keyed deduplication.
// Ephemeral: built from one index fetch, drained within the same cycle,
// mutated only by the queue processor. Not safe for concurrent use; the
// drain is strictly sequential.
type CrawlQueue struct {
	items []Target
	seen  map[string]bool
}

// NewCrawlQueue creates an empty crawl queue
func NewCrawlQueue() *CrawlQueue {
	return &CrawlQueue{
		seen: make(map[string]bool),
	}
}

// Push appends a target unless its URL was already queued this cycle.
// Returns false on duplicates so callers can count skips.
func (q *CrawlQueue) Push(target Target) bool {
	if q.seen[target.URL] {
		return false
	}
	q.seen[target.URL] = true
	q.items = append(q.items, target)
	return true
}

// Pop removes and returns the oldest target in first-seen order
func (q *CrawlQueue) Pop() (Target, bool) {
	if len(q.items) == 0 {
		return Target{}, false
	}
	target := q.items[0]
	q.items = q.items[1:]
	return target, true
}

// Len returns the number of queued targets
func (q *CrawlQueue) Len() int {
	return len(q.items)
}
