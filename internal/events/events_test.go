package events

import (
	"testing"
	"time"
)

func TestPublishFanOut(t *testing.T) {
	t.Parallel()

	b := NewBus()
	ch1, unsub1 := b.Subscribe()
	ch2, unsub2 := b.Subscribe()
	defer unsub1()
	defer unsub2()

	b.Publish(ConnectionChanged{Online: true, At: time.Now()})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			cc, ok := ev.(ConnectionChanged)
			if !ok {
				t.Fatalf("subscriber %d: got %T, want ConnectionChanged", i, ev)
			}
			if !cc.Online {
				t.Errorf("subscriber %d: Online=false, want true", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: no event received", i)
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()

	b := NewBus()
	ch, unsub := b.Subscribe()
	unsub()

	if _, open := <-ch; open {
		t.Fatal("channel still open after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	b.Publish(ActionsFlushed{Delivered: 1})
}

func TestUnsubscribeIdempotent(t *testing.T) {
	t.Parallel()

	b := NewBus()
	_, unsub := b.Subscribe()
	unsub()
	unsub()
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	t.Parallel()

	b := NewBus()
	ch, unsub := b.Subscribe()
	defer unsub()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			b.Publish(AudioProcessed{AudioID: "audio", DraftID: "draft"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	// The buffer holds the first events; the rest were dropped.
	n := 0
	for {
		select {
		case <-ch:
			n++
			continue
		default:
		}
		break
	}
	if n != subscriberBuffer {
		t.Errorf("buffered events: got %d, want %d", n, subscriberBuffer)
	}
}
