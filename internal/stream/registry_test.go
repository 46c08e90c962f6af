package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToAllActiveSubscribers(t *testing.T) {
	r := NewRegistry(4, Observers{})

	sub1 := r.Subscribe("topic")
	sub2 := r.Subscribe("topic")
	defer sub1.Close()
	defer sub2.Close()

	delivered := r.Publish("topic", []byte("hello"))
	require.Equal(t, 2, delivered)

	require.Equal(t, []byte("hello"), <-sub1.Messages())
	require.Equal(t, []byte("hello"), <-sub2.Messages())
}

func TestPublishToUnknownTopicSucceedsWithNoSubscribers(t *testing.T) {
	r := NewRegistry(4, Observers{})

	delivered := r.Publish("nobody-home", []byte("hello"))
	require.Equal(t, 0, delivered)
}

func TestSubscriberAfterPublishDoesNotSeePriorMessage(t *testing.T) {
	r := NewRegistry(4, Observers{})

	r.Publish("topic", []byte("before"))

	sub := r.Subscribe("topic")
	defer sub.Close()

	select {
	case msg := <-sub.Messages():
		t.Fatalf("unexpected message delivered to late subscriber: %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClosedSubscriptionNeverReceivesAgain(t *testing.T) {
	r := NewRegistry(4, Observers{})

	sub := r.Subscribe("topic")
	sub.Close()

	r.Publish("topic", []byte("after close"))

	select {
	case <-sub.Messages():
		t.Fatal("closed subscriber should never receive another message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestOverflowEvictsOldestMessageNotNewest(t *testing.T) {
	r := NewRegistry(2, Observers{})

	sub := r.Subscribe("topic")
	defer sub.Close()

	r.Publish("topic", []byte("1"))
	r.Publish("topic", []byte("2"))
	r.Publish("topic", []byte("3")) // capacity 2: "1" should be evicted

	require.Equal(t, []byte("2"), <-sub.Messages())
	require.Equal(t, []byte("3"), <-sub.Messages())
}

func TestTopicTeardownIsEligibleOnlyWhenEmpty(t *testing.T) {
	r := NewRegistry(4, Observers{})

	sub := r.Subscribe("topic")
	tp := r.getOrCreate("topic")
	require.False(t, tp.teardownEligible())

	sub.Close()
	require.True(t, tp.teardownEligible())
}

func TestDifferentTopicNamesAreIndependent(t *testing.T) {
	r := NewRegistry(4, Observers{})

	subA := r.Subscribe("a")
	defer subA.Close()

	r.Publish("b", []byte("for-b-only"))

	select {
	case <-subA.Messages():
		t.Fatal("subscriber on topic a should not see a publish to topic b")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestObserversAreInvokedOnPublishAndSubscribe(t *testing.T) {
	var published, delivered int
	var topicsActive int

	r := NewRegistry(4, Observers{
		TopicsActive:     func(delta int) { topicsActive += delta },
		MessagePublished: func() { published++ },
		MessageDelivered: func() { delivered++ },
	})

	sub := r.Subscribe("topic")
	r.Publish("topic", []byte("x"))
	<-sub.Messages()
	sub.Close()

	require.Equal(t, 1, published)
	require.Equal(t, 1, delivered)
	require.Equal(t, 0, topicsActive)
}
