package events

import (
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := NewBroker(4)
	a, cancelA := b.Subscribe()
	defer cancelA()
	c, cancelC := b.Subscribe()
	defer cancelC()

	b.Publish("services", OpUpdate, "svc-1")

	for _, ch := range []<-chan Event{a, c} {
		select {
		case ev := <-ch:
			if ev.Table != "services" || ev.Op != OpUpdate || ev.ID != "svc-1" {
				t.Fatalf("unexpected event: %#v", ev)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	b := NewBroker(1)
	ch, cancel := b.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish("services", OpInsert, "x")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked")
	}
	if got := len(ch); got != 1 {
		t.Fatalf("buffered events = %d, want 1", got)
	}
}

func TestCancelClosesChannel(t *testing.T) {
	b := NewBroker(1)
	ch, cancel := b.Subscribe()
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after cancel")
	}
	b.Publish("services", OpDelete, "x")
}

func TestNilBrokerPublishIsNoop(t *testing.T) {
	var b *Broker
	b.Publish("services", OpInsert, "x")
}
