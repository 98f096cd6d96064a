package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int]()
	for i := range 100 {
		require.NoError(t, q.Push(i))
	}
	require.Equal(t, 100, q.Len())

	ctx := context.Background()
	for i := range 100 {
		v, err := q.Receive(ctx)
		require.NoError(t, err)
		require.Equal(t, i, v)
	}
	require.Zero(t, q.Len())
}

func TestQueueReceiveWaitsForPush(t *testing.T) {
	q := NewQueue[string]()

	got := make(chan string, 1)
	go func() {
		v, err := q.Receive(context.Background())
		if err == nil {
			got <- v
		}
	}()

	select {
	case <-got:
		t.Fatal("receive returned before push")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, q.Push("hello"))

	select {
	case v := <-got:
		require.Equal(t, "hello", v)
	case <-time.After(time.Second):
		t.Fatal("receive did not return after push")
	}
}

func TestQueueClose(t *testing.T) {
	t.Run("drains before reporting closed", func(t *testing.T) {
		q := NewQueue[string]()
		require.NoError(t, q.Push("a"))
		require.NoError(t, q.Push("b"))
		q.Close()

		ctx := context.Background()
		v, err := q.Receive(ctx)
		require.NoError(t, err)
		require.Equal(t, "a", v)

		v, err = q.Receive(ctx)
		require.NoError(t, err)
		require.Equal(t, "b", v)

		_, err = q.Receive(ctx)
		require.ErrorIs(t, err, ErrQueueClosed)
	})

	t.Run("push after close fails", func(t *testing.T) {
		q := NewQueue[string]()
		q.Close()
		q.Close()

		require.ErrorIs(t, q.Push("late"), ErrQueueClosed)
		require.Zero(t, q.Len())
	})

	t.Run("wakes every waiting receiver", func(t *testing.T) {
		q := NewQueue[int]()

		var wg sync.WaitGroup
		errs := make(chan error, 4)
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := q.Receive(context.Background())
				errs <- err
			}()
		}

		time.Sleep(20 * time.Millisecond)
		q.Close()

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("receivers were not woken by close")
		}

		close(errs)
		for err := range errs {
			require.ErrorIs(t, err, ErrQueueClosed)
		}
	})
}

func TestQueueReceiveContextCancel(t *testing.T) {
	q := NewQueue[int]()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Receive(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := NewQueue[int]()

	const producers, perProducer = 8, 250

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				_ = q.Push(p*perProducer + i)
			}
		}()
	}

	seen := make(map[int]bool, producers*perProducer)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for len(seen) < producers*perProducer {
		v, err := q.Receive(ctx)
		require.NoError(t, err)
		require.False(t, seen[v], "duplicate value %d", v)
		seen[v] = true
	}
	wg.Wait()
}
