package eventbus

import (
	"testing"
	"time"
)

func TestPublishFansOut(t *testing.T) {
	t.Parallel()
	b := New()
	a, unsubA := b.Subscribe(1)
	c, unsubC := b.Subscribe(1)
	defer unsubA()
	defer unsubC()

	Publish(b, PollSent, DispatchInfo{Action: "poll", RecordID: "fri_суббота"})

	for _, ch := range []<-chan Event{a, c} {
		select {
		case e := <-ch:
			if e.Type != PollSent || e.Time.IsZero() {
				t.Fatalf("event = %+v, want type %q with a timestamp", e, PollSent)
			}
			if info := e.Data.(DispatchInfo); info.RecordID != "fri_суббота" {
				t.Fatalf("RecordID = %q, want %q", info.RecordID, "fri_суббота")
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber got nothing")
		}
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)

	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "b"})
	if got := len(ch); got != 1 {
		t.Fatalf("buffered = %d, want 1", got)
	}
	if e := <-ch; e.Type != "a" {
		t.Fatalf("first event = %q, want %q", e.Type, "a")
	}

	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatal("channel open after unsubscribe")
	}
	b.Publish(Event{Type: "c"})
}

func TestPublishNilBus(t *testing.T) {
	t.Parallel()
	Publish(nil, PollSent, nil)
}
