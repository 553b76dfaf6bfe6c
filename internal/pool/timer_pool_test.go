package pool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerPool_FiresAtDuration(t *testing.T) {
	begin := time.Now()
	timer := GetTimer(100 * time.Millisecond)
	require.NotNil(t, timer)
	defer PutTimer(timer)

	select {
	case fired := <-timer.C:
		assert.GreaterOrEqual(t, fired.Sub(begin), 90*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestTimerPool_ReuseAfterPut(t *testing.T) {
	// an expired timer returned to the pool must come back fully reset
	timer := GetTimer(10 * time.Millisecond)
	<-timer.C
	PutTimer(timer)

	reused := GetTimer(100 * time.Millisecond)
	require.NotNil(t, reused)
	defer PutTimer(reused)

	select {
	case <-reused.C:
		t.Fatal("reused timer fired from a stale expiry")
	case <-time.After(50 * time.Millisecond):
	}

	select {
	case <-reused.C:
	case <-time.After(time.Second):
		t.Fatal("reused timer never fired")
	}
}

func TestTimerPool_PutWhileActive(t *testing.T) {
	// returning a still-running timer must not leak its expiry into the
	// next borrower
	timer := GetTimer(20 * time.Millisecond)
	PutTimer(timer)

	time.Sleep(40 * time.Millisecond)

	next := GetTimer(200 * time.Millisecond)
	require.NotNil(t, next)
	defer PutTimer(next)

	select {
	case <-next.C:
		t.Fatal("borrowed timer carried an expired signal")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTimerPool_ConcurrentBorrowers(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for j := 0; j < 4; j++ {
				timer := GetTimer(5 * time.Millisecond)
				<-timer.C
				PutTimer(timer)
			}
		}()
	}
	wg.Wait()
}
