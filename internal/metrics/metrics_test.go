package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCounter(t *testing.T) {
	var c Counter
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
		}()
	}
	wg.Wait()
	c.Add(5)
	assert.Equal(t, uint64(55), c.Load())
}

func TestTimer(t *testing.T) {
	timer := StartTimer()
	time.Sleep(time.Millisecond)
	assert.GreaterOrEqual(t, timer.Duration(), time.Millisecond)
}

func TestGateway_Snapshot(t *testing.T) {
	g := &Gateway{}
	g.SessionsCreated.Add(3)
	g.SessionsEvicted.Inc()
	g.RequestsThrottled.Inc()

	assert.Equal(t, Snapshot{SessionsCreated: 3, SessionsEvicted: 1, RequestsThrottled: 1}, g.Snapshot())
}
