package events

import "sync"

// StreamCapacity exceeds the most frames one run can produce
// (extract, news, market, final, done, sentinel), so Send never waits on the reader.
const StreamCapacity = 8

// Stream is the single-producer, single-consumer channel of one pipeline run.
// It terminates exactly once, either through Complete or Fail.
type Stream struct {
	ch     chan StageEvent
	mu     sync.Mutex
	closed bool
	once   sync.Once
}

// NewStream returns an open stream.
func NewStream() *Stream {
	return &Stream{ch: make(chan StageEvent, StreamCapacity)}
}

// Events is the read side. It is closed after termination.
func (s *Stream) Events() <-chan StageEvent {
	return s.ch
}

// Send queues a stage event. It reports false once the stream has terminated.
func (s *Stream) Send(kind Kind, data any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.push(StageEvent{Kind: kind, Data: data})
}

// Complete emits done and the sentinel, then closes. Later calls are ignored.
func (s *Stream) Complete() bool {
	return s.terminate(StageEvent{Kind: KindDone}, StageEvent{Kind: KindSentinel})
}

// Fail emits a single error event and closes. Later calls are ignored.
func (s *Stream) Fail(err error) bool {
	return s.terminate(ErrorEvent(err))
}

// Done reports whether the stream has terminated.
func (s *Stream) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Stream) terminate(tail ...StageEvent) bool {
	fired := false
	s.once.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, ev := range tail {
			s.push(ev)
		}
		s.closed = true
		close(s.ch)
		fired = true
	})
	return fired
}

// push requires s.mu.
func (s *Stream) push(ev StageEvent) bool {
	if s.closed {
		return false
	}
	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}

// Collect drains the stream until it closes.
func (s *Stream) Collect() []StageEvent {
	var out []StageEvent
	for ev := range s.ch {
		out = append(out, ev)
	}
	return out
}
