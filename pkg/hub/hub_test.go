package hub

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHub() IHub {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return New(l)
}

func TestPublishReachesOnlyThatScreen(t *testing.T) {
	h := newHub()

	a, cancelA := h.Subscribe("a")
	defer cancelA()
	b, cancelB := h.Subscribe("b")
	defer cancelB()

	h.Publish(Event{Type: EventNotice, ScreenID: "a", Data: "Please select an image first"})

	select {
	case ev := <-a:
		assert.Equal(t, EventNotice, ev.Type)
		assert.Equal(t, "Please select an image first", ev.Data)
		assert.False(t, ev.At.IsZero())
	default:
		t.Fatal("subscriber a got nothing")
	}

	select {
	case ev := <-b:
		t.Fatalf("subscriber b got %v", ev)
	default:
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	h := newHub()

	ch, cancel := h.Subscribe("a")
	assert.Equal(t, 1, h.SubscriberCount("a"))

	cancel()
	cancel()

	assert.Equal(t, 0, h.SubscriberCount("a"))
	_, open := <-ch
	assert.False(t, open)
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	h := newHub()

	ch, cancel := h.Subscribe("a")
	defer cancel()

	for i := 0; i < 100; i++ {
		h.Publish(Event{Type: EventLabels, ScreenID: "a"})
	}

	assert.Len(t, ch, 16)
}

func TestCloseDetachesEveryone(t *testing.T) {
	h := newHub()

	ch, cancel := h.Subscribe("a")
	h.Close("a")

	ev, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, EventClosed, ev.Type)
	_, ok = <-ch
	assert.False(t, ok)

	// cancelling after Close must not double-close the channel
	cancel()
	assert.Equal(t, 0, h.SubscriberCount("a"))
}
