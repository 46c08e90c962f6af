package store

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// visibilityEntry is one write awaiting its visible_at, plus the monotonic
// acceptance sequence used only to break ties when two writes share a
// visible_at (spec.md §4.1.1: "earlier-accepted write is applied
// first, so the later-accepted write remains the final visible value").
type visibilityEntry struct {
	key       []byte
	value     []byte
	visibleAt time.Time
	seq       uint64
	index     int // maintained by container/heap
}

// visibilityHeap is a min-heap ordered by (visibleAt, seq).
type visibilityHeap []*visibilityEntry

func (h visibilityHeap) Len() int { return len(h) }

func (h visibilityHeap) Less(i, j int) bool {
	if !h[i].visibleAt.Equal(h[j].visibleAt) {
		return h[i].visibleAt.Before(h[j].visibleAt)
	}
	return h[i].seq < h[j].seq
}

func (h visibilityHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *visibilityHeap) Push(x any) {
	e := x.(*visibilityEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *visibilityHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// pendingQueue is the single-writer/single-reader delayed-visibility queue
// described in spec.md §9 design note (a): one min-heap keyed by visible_at,
// consumed by one reconciler goroutine. Acceptors (HTTP handlers) push;
// only the reconciler pops.
type pendingQueue struct {
	mu   sync.Mutex
	heap visibilityHeap
	seq  uint64
	wake chan struct{}
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{
		wake: make(chan struct{}, 1),
	}
}

// push adds a new pending write and wakes the reconciler if this entry could
// become the new head (an earlier visible_at than whatever it was waiting on).
func (q *pendingQueue) push(key, value []byte, visibleAt time.Time) {
	q.mu.Lock()
	q.seq++
	entry := &visibilityEntry{key: key, value: value, visibleAt: visibleAt, seq: q.seq}
	heap.Push(&q.heap, entry)
	isHead := q.heap[0] == entry
	q.mu.Unlock()

	if isHead {
		q.signal()
	}
}

func (q *pendingQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *pendingQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// peekHead returns the current head without removing it, and whether one
// exists.
func (q *pendingQueue) peekHead() (*visibilityEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) == 0 {
		return nil, false
	}
	return q.heap[0], true
}

// popHead removes and returns the current head.
func (q *pendingQueue) popHead() *visibilityEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return heap.Pop(&q.heap).(*visibilityEntry)
}

// reconciler applies pending writes to the durable store once their
// visible_at has elapsed. It is the sole caller of db.put except when both
// consistency bounds are zero, where Store.Put writes through directly and
// the queue stays empty.
type reconciler struct {
	queue  *pendingQueue
	db     *db
	logger *zap.Logger
	depth  func(int)
}

func newReconciler(queue *pendingQueue, db *db, logger *zap.Logger, depth func(int)) *reconciler {
	return &reconciler{queue: queue, db: db, logger: logger, depth: depth}
}

// run drives the reconciler until ctx is canceled.
func (r *reconciler) run(ctx context.Context) {
	for {
		head, ok := r.queue.peekHead()
		if !ok {
			select {
			case <-r.queue.wake:
				continue
			case <-ctx.Done():
				return
			}
		}

		now := time.Now()
		if now.Before(head.visibleAt) {
			timer := time.NewTimer(head.visibleAt.Sub(now))
			select {
			case <-timer.C:
			case <-r.queue.wake:
				timer.Stop()
			case <-ctx.Done():
				timer.Stop()
				return
			}
			continue
		}

		entry := r.queue.popHead()
		if r.depth != nil {
			r.depth(r.queue.len())
		}
		r.applyWithRetry(ctx, entry)
	}
}

// drainAll applies every pending write immediately, in (visibleAt, seq)
// order, ignoring how far in the future visibleAt still is. This backs
// graceful shutdown's requirement to "flush pending writes by advancing time
// to completion" (spec.md §5) without losing the final-value tie-break.
func (r *reconciler) drainAll(ctx context.Context) {
	for {
		if _, ok := r.queue.peekHead(); !ok {
			return
		}
		entry := r.queue.popHead()
		if r.depth != nil {
			r.depth(r.queue.len())
		}
		r.applyWithRetry(ctx, entry)
	}
}

// applyWithRetry calls db.put, retrying transient failures with bounded
// exponential backoff (spec.md §4.1.5 / §7: "retried inside the reconciler
// with bounded retries and backoff; never surfaces to callers once
// acknowledged").
func (r *reconciler) applyWithRetry(ctx context.Context, entry *visibilityEntry) {
	const maxAttempts = 5
	backoff := 50 * time.Millisecond
	const backoffCap = 2 * time.Second

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := r.db.put(entry.key, entry.value)
		if err == nil {
			return
		}

		r.logger.Warn("pending write apply failed, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt == maxAttempts {
			r.logger.Error("pending write apply exhausted retries; entry dropped",
				zap.Error(err))
			return
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > backoffCap {
			backoff = backoffCap
		}
	}
}
