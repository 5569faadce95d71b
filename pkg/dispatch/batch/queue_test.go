package batch

import (
	"errors"
	"fmt"
	"testing"

	"proxima-hq/proxima/pkg/dispatch"
)

func pendingFor(t *testing.T, id, body string) *Pending {
	t.Helper()
	params, ok := ParseParams([]byte(body))
	if !ok {
		t.Fatalf("body %q not batchable", body)
	}
	return newPending(id, &dispatch.RequestOptions{Method: "POST", Path: "/v1/chat/completions", Body: []byte(body)}, params)
}

func TestQueue_EnqueueBounded(t *testing.T) {
	q := NewQueue(2)

	if !q.Enqueue(pendingFor(t, "a", `{"model":"gpt-4"}`)) {
		t.Fatal("expected first enqueue to succeed")
	}
	if !q.Enqueue(pendingFor(t, "b", `{"model":"gpt-4"}`)) {
		t.Fatal("expected second enqueue to succeed")
	}
	if q.Enqueue(pendingFor(t, "c", `{"model":"gpt-4"}`)) {
		t.Fatal("expected enqueue beyond capacity to be rejected")
	}

	stats := q.Stats()
	if stats.RejectedCount != 1 {
		t.Errorf("expected rejected count 1, got %d", stats.RejectedCount)
	}
	if stats.CurrentSize != 2 || stats.Capacity != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestQueue_GroupsPartitionByKey(t *testing.T) {
	q := NewQueue(10)
	q.Enqueue(pendingFor(t, "a", `{"model":"gpt-4"}`))
	q.Enqueue(pendingFor(t, "b", `{"model":"claude-3-opus"}`))
	q.Enqueue(pendingFor(t, "c", `{"model":"gpt-4"}`))
	q.Enqueue(pendingFor(t, "d", `{"model":"gpt-4","temperature":0.2}`))

	groups := q.Groups()
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}

	byKey := make(map[string]*Group)
	for _, g := range groups {
		byKey[g.Key] = g
	}
	gpt4 := byKey["model=gpt-4"]
	if gpt4 == nil {
		t.Fatal("missing gpt-4 group")
	}
	if len(gpt4.Requests) != 2 || gpt4.Requests[0].ID != "a" || gpt4.Requests[1].ID != "c" {
		t.Errorf("expected gpt-4 group [a c] in arrival order, got %v", ids(gpt4.Requests))
	}
	if gpt4.Params == nil || gpt4.Params.Model != "gpt-4" {
		t.Error("expected group params derived from first member")
	}
}

func TestQueue_DequeueMultipleAtomic(t *testing.T) {
	q := NewQueue(10)
	for i := 0; i < 5; i++ {
		q.Enqueue(pendingFor(t, fmt.Sprintf("r%d", i), `{"model":"gpt-4"}`))
	}

	taken := q.DequeueMultiple([]string{"r1", "r3", "missing"})
	if len(taken) != 2 {
		t.Fatalf("expected 2 entries taken, got %d", len(taken))
	}
	if taken[0].ID != "r1" || taken[1].ID != "r3" {
		t.Errorf("expected queue-order [r1 r3], got %v", ids(taken))
	}
	if q.Size() != 3 {
		t.Errorf("expected 3 entries remaining, got %d", q.Size())
	}

	// A second claim of the same IDs finds nothing.
	if again := q.DequeueMultiple([]string{"r1", "r3"}); len(again) != 0 {
		t.Errorf("expected no entries on re-claim, got %v", ids(again))
	}
}

func TestQueue_ClearRejectsAll(t *testing.T) {
	q := NewQueue(10)
	a := pendingFor(t, "a", `{"model":"gpt-4"}`)
	b := pendingFor(t, "b", `{"model":"gpt-4"}`)
	q.Enqueue(a)
	q.Enqueue(b)

	reason := &dispatch.ShutdownError{Component: "batch manager"}
	if cleared := q.Clear(reason); cleared != 2 {
		t.Fatalf("expected 2 entries cleared, got %d", cleared)
	}
	if q.Size() != 0 {
		t.Errorf("expected empty queue after clear, size %d", q.Size())
	}

	for _, p := range []*Pending{a, b} {
		res := <-p.done
		var sd *dispatch.ShutdownError
		if !errors.As(res.err, &sd) {
			t.Errorf("entry %s: expected ShutdownError, got %v", p.ID, res.err)
		}
	}
}

func TestPending_SettleOnce(t *testing.T) {
	p := pendingFor(t, "a", `{"model":"gpt-4"}`)

	p.settle(&dispatch.Response{Success: true}, nil)
	p.settle(nil, errors.New("late"))

	res := <-p.done
	if res.err != nil || !res.resp.Success {
		t.Errorf("expected first settle to win, got %+v", res)
	}
	select {
	case <-p.done:
		t.Error("completion handle settled twice")
	default:
	}
}

func ids(ps []*Pending) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}
