package service

import (
	"context"
	"sync"

	"ragchat/internal/domain"
)

// Stream delivers the events of one Initialize or Ask call to a single
// consumer, in the order they were produced. The channel returned by Events
// closes after the terminal event, or without one after Cancel.
type Stream struct {
	events   chan domain.Event
	done     chan struct{}
	finished chan struct{}
	cancel   context.CancelFunc
	once     sync.Once
}

func newStream(parent context.Context) (*Stream, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &Stream{
		events:   make(chan domain.Event),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		cancel:   cancel,
	}, ctx
}

func (s *Stream) Events() <-chan domain.Event { return s.events }

// Cancel aborts the operation behind the stream and discards its pending
// events. It returns once the producer has stopped; the consumer sees no
// further events, only the channel closing.
func (s *Stream) Cancel() {
	s.Abort()
	<-s.finished
}

// Abort is Cancel without waiting for the producer. Events already in flight
// to a reader blocked on Events may still arrive before the channel closes.
func (s *Stream) Abort() {
	s.once.Do(func() {
		close(s.done)
		s.cancel()
	})
}

// Wait blocks until the producer has finished.
func (s *Stream) Wait() { <-s.finished }

func (s *Stream) cancelled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// send blocks until the consumer takes ev or the stream is cancelled.
func (s *Stream) send(ev domain.Event) bool {
	if s.cancelled() {
		return false
	}
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *Stream) finish() {
	s.cancel()
	close(s.events)
	close(s.finished)
}

// Collect drains the stream and returns its events.
func Collect(s *Stream) []domain.Event {
	var out []domain.Event
	for ev := range s.Events() {
		out = append(out, ev)
	}
	return out
}
