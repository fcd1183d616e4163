package eventstream_test

import (
	"testing"
	"time"

	"github.com/open-horizon-labs/hifi-bridge/internal/eventstream"
	"github.com/open-horizon-labs/hifi-bridge/internal/models"
)

func TestSubscribePublish(t *testing.T) {
	s := eventstream.New()
	ch := s.Subscribe("client-1")

	s.Publish(models.ActivityEntry{Kind: models.KindControl, ZoneID: "roon:z1"})

	select {
	case got := <-ch:
		if got.ZoneID != "roon:z1" {
			t.Errorf("got zone %q, want roon:z1", got.ZoneID)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := eventstream.New()
	ch := s.Subscribe("client-2")
	s.Unsubscribe("client-2")

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to be closed")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestPublishDropsWhenSubscriberSlow(t *testing.T) {
	s := eventstream.New()
	s.Subscribe("slow-reader")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 64; i++ {
			s.Publish(models.ActivityEntry{Kind: models.KindGetImage})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestSubscriberCount(t *testing.T) {
	s := eventstream.New()
	if s.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", s.SubscriberCount())
	}
	s.Subscribe("a")
	s.Subscribe("b")
	if s.SubscriberCount() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", s.SubscriberCount())
	}
}
