// Package progress carries pipeline progress snapshots to the chat at a bounded rate
package progress

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/entities"
)

// Stream is a latest-wins, rate-bounded channel of progress snapshots.
// At most one snapshot per interval passes, except stage changes and terminal
// stages, which always pass. A nil *Stream discards everything.
type Stream struct {
	limiter *rate.Limiter
	ch      chan entities.Progress

	mu        sync.Mutex
	closed    bool
	lastStage entities.Stage
	dropped   int
}

// NewStream creates a stream that lets one snapshot through per interval
func NewStream(interval time.Duration) *Stream {
	if interval <= 0 {
		interval = time.Second
	}
	return &Stream{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		ch:      make(chan entities.Progress, 1),
	}
}

// Publish offers a snapshot and reports whether it was queued.
// It never blocks; an unread snapshot is replaced by the newer one.
func (s *Stream) Publish(p entities.Progress) bool {
	if s == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	allowed := s.limiter.Allow()
	changed := p.Stage != s.lastStage
	if !p.Stage.Terminal() && !changed && !allowed {
		s.dropped++
		return false
	}
	s.lastStage = p.Stage

	select {
	case <-s.ch:
		s.dropped++
	default:
	}
	s.ch <- p
	return true
}

// C returns the channel the consumer reads snapshots from
func (s *Stream) C() <-chan entities.Progress {
	return s.ch
}

// Dropped returns how many snapshots were skipped or overwritten
func (s *Stream) Dropped() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close ends the stream; the consumer still receives a pending snapshot
func (s *Stream) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
