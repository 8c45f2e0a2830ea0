package deliver

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// State is a step of the hosted upload retry machine
type State int

const (
	StateAttempting State = iota
	StateRetry
	StateNextServer
	StateSuccess
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateRetry:
		return "retry"
	case StateNextServer:
		return "next_server"
	case StateSuccess:
		return "success"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Step tells the uploader what to do next
type Step struct {
	State   State
	Server  string
	Attempt int // attempt number on Server, starting at 1
	Delay   time.Duration
}

// plan walks the candidate servers: every server gets perServer attempts,
// and no more than maxAttempts uploads are made overall.
// The delay schedule comes from schedule and is independent of the states.
type plan struct {
	servers     []string
	perServer   int
	maxAttempts int
	schedule    backoff.BackOff

	server  int
	attempt int
	total   int
}

func newPlan(servers []string, perServer, maxAttempts int, schedule backoff.BackOff) *plan {
	schedule.Reset()
	return &plan{
		servers:     servers,
		perServer:   max(perServer, 1),
		maxAttempts: max(maxAttempts, 1),
		schedule:    schedule,
	}
}

// newSchedule returns exponential delays from initial, doubling up to maxDelay, without jitter
func newSchedule(initial, maxDelay time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = maxDelay
	b.MaxElapsedTime = 0
	return b
}

// start returns the first attempt, or Exhausted when there is no server
func (p *plan) start() Step {
	if len(p.servers) == 0 {
		return Step{State: StateExhausted}
	}
	p.attempt, p.total = 1, 1
	return Step{State: StateAttempting, Server: p.servers[0], Attempt: 1}
}

// failed records a failed attempt and returns the next step
func (p *plan) failed() Step {
	if p.total >= p.maxAttempts {
		return Step{State: StateExhausted, Server: p.servers[p.server], Attempt: p.attempt}
	}

	state := StateRetry
	if p.attempt >= p.perServer {
		if p.server+1 >= len(p.servers) {
			return Step{State: StateExhausted, Server: p.servers[p.server], Attempt: p.attempt}
		}
		p.server++
		p.attempt = 0
		state = StateNextServer
	}

	p.attempt++
	p.total++
	return Step{
		State:   state,
		Server:  p.servers[p.server],
		Attempt: p.attempt,
		Delay:   p.schedule.NextBackOff(),
	}
}

// succeeded marks the current attempt as the final one
func (p *plan) succeeded() Step {
	return Step{State: StateSuccess, Server: p.servers[p.server], Attempt: p.attempt}
}

// attempts returns the number of uploads started so far
func (p *plan) attempts() int {
	return p.total
}
