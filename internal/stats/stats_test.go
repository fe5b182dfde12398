package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	Init(start)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			IncMessages()
		}()
	}
	wg.Wait()

	s := Read()
	assert.EqualValues(t, 50, s.Messages)
	assert.True(t, start.Equal(s.StartedAt))
	assert.EqualValues(t, 90, s.UptimeSeconds(start.Add(90*time.Second+300*time.Millisecond)))

	Init(start)
	assert.Zero(t, Read().Messages)
}

func TestUptimeBeforeInit(t *testing.T) {
	assert.Zero(t, Snapshot{}.UptimeSeconds(time.Now()))
}
