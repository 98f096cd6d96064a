package relay

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func runLoop(t *testing.T, loop *Loop) (context.CancelFunc, <-chan error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		done <- loop.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-finished
	})
	return cancel, done
}

func receiveWithin(t *testing.T, q *Queue[string]) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, err := q.Receive(ctx)
	require.NoError(t, err)
	return v
}

func TestLoopEcho(t *testing.T) {
	bus := NewBus()
	runLoop(t, NewLoop(bus, nil))

	id, inbound, outbound, err := bus.Register()
	require.NoError(t, err)

	require.NoError(t, inbound.Push(Message{Source: id, Payload: "ping"}))
	require.Equal(t, "ping", receiveWithin(t, outbound))
}

func TestLoopFIFOPerSender(t *testing.T) {
	bus := NewBus()
	runLoop(t, NewLoop(bus, EchoPolicy{Sender: bus}))

	a, inbound, outA, err := bus.Register()
	require.NoError(t, err)
	b, _, outB, err := bus.Register()
	require.NoError(t, err)

	const n = 200
	go func() {
		for i := range n {
			_ = inbound.Push(Message{Source: a, Payload: fmt.Sprintf("a-%d", i)})
		}
	}()
	go func() {
		for i := range n {
			_ = inbound.Push(Message{Source: b, Payload: fmt.Sprintf("b-%d", i)})
		}
	}()

	for i := range n {
		require.Equal(t, fmt.Sprintf("a-%d", i), receiveWithin(t, outA))
		require.Equal(t, fmt.Sprintf("b-%d", i), receiveWithin(t, outB))
	}
}

func TestLoopContinuesAfterRouteFailure(t *testing.T) {
	bus := NewBus()
	runLoop(t, NewLoop(bus, nil))

	id, inbound, outbound, err := bus.Register()
	require.NoError(t, err)

	// the source of the first message has already gone away
	require.NoError(t, inbound.Push(Message{Source: id + 1, Payload: "orphan"}))
	require.NoError(t, inbound.Push(Message{Source: id, Payload: "still here"}))

	require.Equal(t, "still here", receiveWithin(t, outbound))
}

func TestLoopStops(t *testing.T) {
	t.Run("context cancel returns nil", func(t *testing.T) {
		bus := NewBus()
		cancel, done := runLoop(t, NewLoop(bus, nil))

		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("loop did not stop")
		}
	})

	t.Run("closed inbound is fatal", func(t *testing.T) {
		bus := NewBus()
		_, done := runLoop(t, NewLoop(bus, nil))

		bus.Close()
		select {
		case err := <-done:
			require.ErrorIs(t, err, ErrInboundClosed)
		case <-time.After(time.Second):
			t.Fatal("loop did not stop")
		}
	})
}

func TestBroadcastPolicy(t *testing.T) {
	bus := NewBus()
	runLoop(t, NewLoop(bus, BroadcastPolicy{Bus: bus}))

	src, inbound, outSrc, err := bus.Register()
	require.NoError(t, err)
	_, _, outA, err := bus.Register()
	require.NoError(t, err)
	_, _, outB, err := bus.Register()
	require.NoError(t, err)

	require.NoError(t, inbound.Push(Message{Source: src, Payload: "hello all"}))

	require.Equal(t, "hello all", receiveWithin(t, outA))
	require.Equal(t, "hello all", receiveWithin(t, outB))

	time.Sleep(20 * time.Millisecond)
	require.Zero(t, outSrc.Len())
}

func TestNewPolicy(t *testing.T) {
	bus := NewBus()

	tests := []struct {
		name    string
		want    Policy
		wantErr bool
	}{
		{name: "", want: EchoPolicy{Sender: bus}},
		{name: PolicyEcho, want: EchoPolicy{Sender: bus}},
		{name: PolicyBroadcast, want: BroadcastPolicy{Bus: bus}},
		{name: "gossip", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPolicy(tt.name, bus)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, p)
		})
	}
}
