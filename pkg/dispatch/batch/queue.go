package batch

import (
	"sync"
	"time"

	"proxima-hq/proxima/pkg/dispatch"
)

// Pending is one request held in the batch queue awaiting batch formation.
// Its completion handle is settled exactly once: with a response after its
// batch executes, or with an error when the queue is cleared.
type Pending struct {
	// ID uniquely identifies the request within the queue.
	ID string

	// Req is the request to forward upstream.
	Req *dispatch.RequestOptions

	// Key is the derived batch key.
	Key string

	// Params are the canonical parameters the key was derived from.
	Params *Params

	// Enqueued is the arrival time.
	Enqueued time.Time

	done chan pendingResult
	once sync.Once
}

type pendingResult struct {
	resp *dispatch.Response
	err  error
}

// newPending creates a queue entry with a one-shot completion handle.
func newPending(id string, req *dispatch.RequestOptions, params *Params) *Pending {
	return &Pending{
		ID:       id,
		Req:      req,
		Key:      params.Key(),
		Params:   params,
		Enqueued: time.Now(),
		done:     make(chan pendingResult, 1),
	}
}

// settle resolves the completion handle. Extra calls are no-ops, which
// keeps the exactly-once invariant even if clearing races a flush.
func (p *Pending) settle(resp *dispatch.Response, err error) {
	p.once.Do(func() {
		p.done <- pendingResult{resp: resp, err: err}
	})
}

// Group is an ephemeral set of pending requests sharing one batch key, in
// arrival order. Groups are recomputed each flush cycle and never persist.
type Group struct {
	// Key is the shared batch key.
	Key string

	// Requests are the group members, oldest first.
	Requests []*Pending

	// FormedAt is when the group was computed.
	FormedAt time.Time

	// Params are the canonical parameters of the group's first member.
	Params *Params
}

// Queue is a bounded holding area for requests awaiting batch formation.
// All state is guarded by one mutex per instance.
type Queue struct {
	maxSize int

	mu      sync.Mutex
	entries []*Pending

	enqueuedCount int64
	dequeuedCount int64
	rejectedCount int64
	maxObserved   int
	wait          *dispatch.LatencyTracker
}

// NewQueue creates a batch queue bounded to maxSize entries.
func NewQueue(maxSize int) *Queue {
	return &Queue{
		maxSize: maxSize,
		wait:    dispatch.NewLatencyTracker(),
	}
}

// Enqueue stores an entry, returning false (and counting the rejection)
// when the queue is at capacity.
func (q *Queue) Enqueue(p *Pending) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.maxSize {
		q.rejectedCount++
		return false
	}

	q.entries = append(q.entries, p)
	q.enqueuedCount++
	if len(q.entries) > q.maxObserved {
		q.maxObserved = len(q.entries)
	}
	return true
}

// Size returns the current queue depth.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Groups partitions all currently held entries by batch key, preserving
// arrival order within each group.
func (q *Queue) Groups() []*Group {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	byKey := make(map[string]*Group)
	var groups []*Group
	for _, p := range q.entries {
		g, ok := byKey[p.Key]
		if !ok {
			g = &Group{Key: p.Key, FormedAt: now, Params: p.Params}
			byKey[p.Key] = g
			groups = append(groups, g)
		}
		g.Requests = append(g.Requests, p)
	}
	return groups
}

// DequeueMultiple atomically removes the entries with the given IDs and
// returns them in queue order. IDs not present are ignored, so an entry
// can never be claimed twice by concurrent flushes.
func (q *Queue) DequeueMultiple(ids []string) []*Pending {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var taken []*Pending
	kept := q.entries[:0]
	for _, p := range q.entries {
		if want[p.ID] {
			taken = append(taken, p)
			continue
		}
		kept = append(kept, p)
	}
	q.entries = kept

	now := time.Now()
	for _, p := range taken {
		q.dequeuedCount++
		q.wait.Record(now.Sub(p.Enqueued))
	}
	return taken
}

// Clear rejects every pending entry's completion handle with reason, then
// empties the queue. It returns the number of entries cleared.
func (q *Queue) Clear(reason error) int {
	q.mu.Lock()
	cleared := q.entries
	q.entries = nil
	q.mu.Unlock()

	for _, p := range cleared {
		p.settle(nil, reason)
	}
	return len(cleared)
}

// QueueStats is a point-in-time snapshot of queue counters.
type QueueStats struct {
	// EnqueuedCount counts accepted entries.
	EnqueuedCount int64 `json:"enqueued_count"`

	// DequeuedCount counts entries removed for execution.
	DequeuedCount int64 `json:"dequeued_count"`

	// RejectedCount counts capacity rejections.
	RejectedCount int64 `json:"rejected_count"`

	// CurrentSize is the current queue depth.
	CurrentSize int `json:"current_size"`

	// MaxSize is the largest depth observed.
	MaxSize int `json:"max_size"`

	// Capacity is the configured bound.
	Capacity int `json:"capacity"`

	// Wait summarizes enqueue-to-dequeue wait times.
	Wait dispatch.LatencySnapshot `json:"wait"`
}

// Stats returns a snapshot of the queue's counters.
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	s := QueueStats{
		EnqueuedCount: q.enqueuedCount,
		DequeuedCount: q.dequeuedCount,
		RejectedCount: q.rejectedCount,
		CurrentSize:   len(q.entries),
		MaxSize:       q.maxObserved,
		Capacity:      q.maxSize,
	}
	q.mu.Unlock()

	s.Wait = q.wait.Snapshot()
	return s
}
