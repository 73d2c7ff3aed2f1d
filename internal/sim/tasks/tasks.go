// Package tasks is the cooperative deferred-work queue driven by the world
// loop. Tasks are one-shot: each runs at most once, on the first drain at or
// after its due tick, and only if its owner is still connected.
package tasks

import (
	"fmt"
	"sort"
)

type Kind string

const (
	KindReplicate   Kind = "REPLICATE"
	KindSyncUpgrade Kind = "SYNC_UPGRADE"
)

// Task carries an immutable payload captured when the task was scheduled.
type Task struct {
	TaskID  string
	Kind    Kind
	OwnerID string
	DueTick uint64

	// Payload is the captured operation Run closes over.
	Payload any
	Run     func(nowTick uint64)

	seq uint64
}

// Result summarises a drain.
type Result struct {
	Ran          int
	Aborted      int
	AbortedKinds []Kind
}

// Queue is not safe for concurrent use; it belongs to the world loop.
type Queue struct {
	pending []*Task
	nextSeq uint64
}

func NewQueue() *Queue { return &Queue{} }

// Schedule enqueues t and returns its task id.
func (q *Queue) Schedule(t Task) string {
	q.nextSeq++
	t.seq = q.nextSeq
	if t.TaskID == "" {
		t.TaskID = fmt.Sprintf("T%06d", t.seq)
	}
	q.pending = append(q.pending, &t)
	return t.TaskID
}

func (q *Queue) Len() int { return len(q.pending) }

// Drain runs every task due at nowTick in scheduling order. alive is the
// liveness check evaluated per task right before it runs; nil means every
// owner is alive. Tasks scheduled by a running task wait for a later drain.
func (q *Queue) Drain(nowTick uint64, alive func(ownerID string) bool) Result {
	var res Result
	if len(q.pending) == 0 {
		return res
	}
	var due, keep []*Task
	for _, t := range q.pending {
		if t.DueTick <= nowTick {
			due = append(due, t)
		} else {
			keep = append(keep, t)
		}
	}
	if len(due) == 0 {
		return res
	}
	q.pending = keep
	sort.SliceStable(due, func(i, j int) bool { return due[i].seq < due[j].seq })

	for _, t := range due {
		if alive != nil && !alive(t.OwnerID) {
			res.Aborted++
			res.AbortedKinds = append(res.AbortedKinds, t.Kind)
			continue
		}
		if t.Run != nil {
			t.Run(nowTick)
		}
		res.Ran++
	}
	return res
}

// Pending returns copies of the queued tasks in scheduling order.
func (q *Queue) Pending() []Task {
	out := make([]Task, 0, len(q.pending))
	for _, t := range q.pending {
		out = append(out, *t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// NextSeq is the sequence number of the most recently scheduled task.
func (q *Queue) NextSeq() uint64 { return q.nextSeq }

// Restore replaces the queue with ts, kept in the given order, and
// continues numbering after nextSeq.
func (q *Queue) Restore(ts []Task, nextSeq uint64) {
	q.pending = make([]*Task, 0, len(ts))
	for i := range ts {
		t := ts[i]
		t.seq = uint64(i + 1)
		q.pending = append(q.pending, &t)
	}
	if nextSeq < uint64(len(ts)) {
		nextSeq = uint64(len(ts))
	}
	q.nextSeq = nextSeq
}
