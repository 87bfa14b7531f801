package eventqueue

import (
	"testing"
	"time"
)

func at(seconds int) time.Time {
	return time.Unix(0, 0).UTC().Add(time.Duration(seconds) * time.Second)
}

func TestInsertPeekOrdersByNextTrigger(t *testing.T) {
	q := New()
	q.Insert(&Event{NextTrigger: at(30), Action: Suspend})
	q.Insert(&Event{NextTrigger: at(10), Action: Resume})
	q.Insert(&Event{NextTrigger: at(20), Action: PowerOn})

	e, ok := q.Peek()
	if !ok {
		t.Fatal("expected non-empty queue")
	}
	if !e.NextTrigger.Equal(at(10)) {
		t.Fatalf("peek = %v, want earliest trigger", e.NextTrigger)
	}
}

func TestFetchRemovesInAscendingOrder(t *testing.T) {
	q := New()
	for _, s := range []int{50, 10, 30, 20, 40} {
		q.Insert(&Event{NextTrigger: at(s)})
	}
	var got []int
	for q.Len() > 0 {
		e, _ := q.Fetch()
		got = append(got, int(e.NextTrigger.Sub(at(0)).Seconds()))
	}
	want := []int{10, 20, 30, 40, 50}
	for i, g := range got {
		if g != want[i] {
			t.Fatalf("fetch order = %v, want %v", got, want)
		}
	}
}

func TestFetchIfTriggered(t *testing.T) {
	q := New()
	q.Insert(&Event{NextTrigger: at(100)})

	if _, ok := q.FetchIfTriggered(at(50)); ok {
		t.Fatal("should not fire before its trigger")
	}
	if q.Len() != 1 {
		t.Fatalf("queue mutated on non-fire, len = %d", q.Len())
	}
	e, ok := q.FetchIfTriggered(at(100))
	if !ok || !e.NextTrigger.Equal(at(100)) {
		t.Fatal("expected event to fire at its own trigger instant")
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue after fetch, len = %d", q.Len())
	}
}

func TestClearRemovesOnlyMatchingSource(t *testing.T) {
	q := New()
	q.Insert(&Event{NextTrigger: at(10), Source: Parsed})
	q.Insert(&Event{NextTrigger: at(20), Source: Internal})
	q.Insert(&Event{NextTrigger: at(30), Source: Parsed})

	q.Clear(Parsed)
	if q.Len() != 1 {
		t.Fatalf("len after Clear(Parsed) = %d, want 1", q.Len())
	}
	e, _ := q.Peek()
	if e.Source != Internal {
		t.Fatalf("surviving event source = %v, want Internal", e.Source)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	q := New()
	q.Insert(&Event{NextTrigger: at(10), Source: Parsed})
	q.Insert(&Event{NextTrigger: at(20), Source: Internal})

	q.Clear(Parsed)
	before := q.Drain()
	q.Clear(Parsed)
	after := q.Drain()

	if len(before) != len(after) {
		t.Fatalf("second Clear(Parsed) changed queue size: %d -> %d", len(before), len(after))
	}
}
