package deliver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlan_WalksServersWithBackoff(t *testing.T) {
	p := newPlan([]string{"store1", "store2", "upload"}, 2, 6, newSchedule(time.Second, 30*time.Second))

	want := []Step{
		{State: StateAttempting, Server: "store1", Attempt: 1},
		{State: StateRetry, Server: "store1", Attempt: 2, Delay: 1 * time.Second},
		{State: StateNextServer, Server: "store2", Attempt: 1, Delay: 2 * time.Second},
		{State: StateRetry, Server: "store2", Attempt: 2, Delay: 4 * time.Second},
		{State: StateNextServer, Server: "upload", Attempt: 1, Delay: 8 * time.Second},
		{State: StateRetry, Server: "upload", Attempt: 2, Delay: 16 * time.Second},
	}

	got := []Step{p.start()}
	for i := 1; i < len(want); i++ {
		got = append(got, p.failed())
	}
	assert.Equal(t, want, got)

	assert.Equal(t, StateExhausted, p.failed().State)
	assert.Equal(t, 6, p.attempts())
}

func TestPlan_GlobalCeiling(t *testing.T) {
	p := newPlan([]string{"a", "b", "c"}, 2, 3, newSchedule(time.Millisecond, time.Millisecond))

	assert.Equal(t, "a", p.start().Server)
	assert.Equal(t, StateRetry, p.failed().State)

	next := p.failed()
	assert.Equal(t, StateNextServer, next.State)
	assert.Equal(t, "b", next.Server)

	assert.Equal(t, StateExhausted, p.failed().State)
	assert.Equal(t, 3, p.attempts())
}

func TestPlan_BackoffCapped(t *testing.T) {
	p := newPlan([]string{"upload"}, 10, 10, newSchedule(time.Second, 3*time.Second))

	p.start()
	var delays []time.Duration
	for i := 0; i < 4; i++ {
		delays = append(delays, p.failed().Delay)
	}

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}, delays)
}

func TestPlan_NoServers(t *testing.T) {
	p := newPlan(nil, 2, 6, newSchedule(time.Second, time.Second))

	assert.Equal(t, StateExhausted, p.start().State)
	assert.Zero(t, p.attempts())
}

func TestPlan_Success(t *testing.T) {
	p := newPlan([]string{"a", "b"}, 1, 6, newSchedule(time.Millisecond, time.Millisecond))

	p.start()
	p.failed()
	done := p.succeeded()

	assert.Equal(t, StateSuccess, done.State)
	assert.Equal(t, "b", done.Server)
	assert.Equal(t, 2, p.attempts())
}
