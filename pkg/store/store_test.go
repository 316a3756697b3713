package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/astromechza/pixelpusher/pkg/mutation"
	"github.com/astromechza/pixelpusher/pkg/reducer"
	"github.com/astromechza/pixelpusher/pkg/state"
)

func TestRunAppliesActionsInOrder(t *testing.T) {
	engine := reducer.NewEngine(mutation.Default{})
	s := New(engine.Reduce, state.New())

	var lock sync.Mutex
	var seen []string
	done := make(chan struct{})
	s.Subscribe(func(prev, next state.State) {
		lock.Lock()
		defer lock.Unlock()
		seen = append(seen, prev.PeerInfo.Name+">"+next.PeerInfo.Name)
		if len(seen) == 3 {
			close(done)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = s.Run(ctx)
	}()

	s.Dispatch(reducer.SelfNameChanged{Name: "a"})
	s.Dispatch(reducer.SelfNameChanged{Name: "b"})
	s.Dispatch(reducer.Unknown{Type: "X"})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for transitions")
	}
	lock.Lock()
	defer lock.Unlock()
	require.Equal(t, []string{">a", "a>b", "b>b"}, seen)
	require.Equal(t, "b", s.State().PeerInfo.Name)
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(func(st state.State, _ reducer.Action) state.State { return st }, state.New())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Run(ctx))
}

func TestDispatchDoesNotBlockAfterStop(t *testing.T) {
	s := New(func(st state.State, _ reducer.Action) state.State { return st }, state.New())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Run(ctx))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2*defaultQueueSize; i++ {
			s.Dispatch(reducer.ShowSpinner{})
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch blocked after stop")
	}
}
