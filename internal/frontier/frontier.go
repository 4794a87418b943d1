// Package frontier holds the pending crawl requests and the set of URLs the
// current run has already accepted.
//
// Requests are served highest priority first and FIFO among equal
// priorities. A URL is accepted at most once per run, keyed by its
// normalized form (see Normalize).
package frontier

import (
	"container/heap"
	"context"
	"sync"
)

// Kind tells the orchestrator which extraction path a request takes.
type Kind int

const (
	// KindPage is an HTML page whose links are followed.
	KindPage Kind = iota
	// KindPDF is a document handed to the PDF extractor.
	KindPDF
)

func (k Kind) String() string {
	switch k {
	case KindPage:
		return "page"
	case KindPDF:
		return "pdf"
	default:
		return "unknown"
	}
}

// Request is one unit of pending work. Requests are never mutated after
// they are pushed.
type Request struct {
	URL         string
	Priority    int
	ParentTitle string
	ParentURL   string
	Kind        Kind
}

// SeedPriority returns the priority of the i-th of n seeds: the first seed
// gets n*10, the last gets 10.
func SeedPriority(i, n int) int {
	return (n - i) * 10
}

// Frontier is a priority queue plus visited set. It is safe for concurrent use.
type Frontier struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    requestHeap
	visited  map[string]struct{}
	seq      uint64
	inflight int
	closed   bool
}

// New creates an empty frontier.
func New() *Frontier {
	f := &Frontier{visited: make(map[string]struct{})}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Push enqueues req unless its URL was seen before in this run. It returns
// false for duplicates, unparsable URLs and pushes after Close.
func (f *Frontier) Push(req Request) bool {
	key, err := Normalize(req.URL)
	if err != nil {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}
	if _, seen := f.visited[key]; seen {
		return false
	}
	f.visited[key] = struct{}{}

	heap.Push(&f.queue, &entry{req: req, seq: f.seq})
	f.seq++
	f.cond.Signal()
	return true
}

// Next blocks until a request is available and returns it. It returns false
// once the frontier is permanently empty (nothing queued and no request in
// flight), after Close, or when ctx is done. Every request returned must be
// acknowledged with Done.
func (f *Frontier) Next(ctx context.Context) (Request, bool) {
	stop := context.AfterFunc(ctx, func() {
		f.mu.Lock()
		f.cond.Broadcast()
		f.mu.Unlock()
	})
	defer stop()

	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if f.closed || ctx.Err() != nil {
			return Request{}, false
		}
		if f.queue.Len() > 0 {
			e := heap.Pop(&f.queue).(*entry)
			f.inflight++
			return e.req, true
		}
		if f.inflight == 0 {
			// Nobody can push anymore: wake the other waiters so they exit too.
			f.cond.Broadcast()
			return Request{}, false
		}
		f.cond.Wait()
	}
}

// Done marks a request returned by Next as finished.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inflight > 0 {
		f.inflight--
	}
	f.cond.Broadcast()
}

// Close stops the frontier: pending requests are dropped and every Next
// returns false.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	f.queue = nil
	f.cond.Broadcast()
}

// Seen reports whether rawURL was already accepted.
func (f *Frontier) Seen(rawURL string) bool {
	key, err := Normalize(rawURL)
	if err != nil {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[key]
	return ok
}

// Len returns the number of queued requests.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queue.Len()
}

// VisitedCount returns the number of distinct URLs accepted so far.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

type entry struct {
	req Request
	seq uint64
}

// requestHeap orders by priority descending, then insertion order.
type requestHeap []*entry

func (h requestHeap) Len() int { return len(h) }

func (h requestHeap) Less(i, j int) bool {
	if h[i].req.Priority != h[j].req.Priority {
		return h[i].req.Priority > h[j].req.Priority
	}
	return h[i].seq < h[j].seq
}

func (h requestHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *requestHeap) Push(x any) { *h = append(*h, x.(*entry)) }

func (h *requestHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
