// Package store runs the transition engine over a queue of actions. Actions are applied one at a time on the Run
// goroutine; after each one every subscriber is called with the previous and next state before the next action is
// taken off the queue.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/astromechza/pixelpusher/pkg/reducer"
	"github.com/astromechza/pixelpusher/pkg/state"
)

// Reducer is the transition function, normally (*reducer.Engine).Reduce.
type Reducer func(state.State, reducer.Action) state.State

// Subscriber observes each transition. It runs on the Run goroutine and must not block.
type Subscriber func(prev, next state.State)

type Store struct {
	reduce Reducer
	queue  chan reducer.Action
	// stopped is closed when Run returns; later dispatches are dropped.
	stopped  chan struct{}
	stopOnce sync.Once

	lock        sync.RWMutex
	current     state.State
	subscribers []Subscriber
}

const defaultQueueSize = 256

func New(reduce Reducer, initial state.State) *Store {
	return &Store{
		reduce:  reduce,
		queue:   make(chan reducer.Action, defaultQueueSize),
		stopped: make(chan struct{}),
		current: initial,
	}
}

// State returns the latest snapshot.
func (s *Store) State() state.State {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.current
}

func (s *Store) Subscribe(fn Subscriber) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Dispatch queues an action. It blocks only while the queue is full and Run is still applying actions.
func (s *Store) Dispatch(action reducer.Action) {
	select {
	case s.queue <- action:
	case <-s.stopped:
		slog.Debug("dropping action after stop", "action", fmt.Sprintf("%T", action))
	}
}

// Run applies queued actions until the context is cancelled.
func (s *Store) Run(ctx context.Context) error {
	defer s.stopOnce.Do(func() { close(s.stopped) })
	for {
		select {
		case action := <-s.queue:
			s.apply(action)
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Store) apply(action reducer.Action) {
	s.lock.Lock()
	prev := s.current
	next := s.reduce(prev, action)
	s.current = next
	subscribers := s.subscribers
	s.lock.Unlock()

	slog.Debug("applied action", "action", fmt.Sprintf("%T", action))
	for _, fn := range subscribers {
		fn(prev, next)
	}
}
