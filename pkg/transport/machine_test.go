package transport

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineCancelledIsLastUpdate(t *testing.T) {
	for i := 0; i < 500; i++ {
		var m machine

		var mu sync.Mutex
		var got []State
		m.SetStateHandler(func(s State, _ *Error) {
			mu.Lock()
			got = append(got, s)
			mu.Unlock()
		})

		var wg sync.WaitGroup
		start := make(chan struct{})
		for _, s := range []State{StatePreparing, StateWaiting, StateReady} {
			wg.Add(1)
			go func(s State) {
				defer wg.Done()
				<-start
				for j := 0; j < 20; j++ {
					m.transition(s, nil)
				}
			}(s)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			m.cancelled()
		}()

		close(start)
		wg.Wait()
		m.events.Wait()

		mu.Lock()
		require.NotEmpty(t, got)
		assert.Equal(t, StateCancelled, got[len(got)-1], "iteration %d", i)
		cancelled := 0
		for _, s := range got {
			if s == StateCancelled {
				cancelled++
			}
		}
		assert.Equal(t, 1, cancelled)
		mu.Unlock()
	}
}

func TestMachineTransitionFromRespectsCurrentState(t *testing.T) {
	var m machine
	assert.False(t, m.transitionFrom(StateReady, StateFailed, nil))
	assert.True(t, m.transitionFrom(StateSetup, StatePreparing, nil))
	assert.Equal(t, StatePreparing, m.State())

	assert.True(t, m.cancelled())
	assert.False(t, m.cancelled())
	assert.False(t, m.transition(StateReady, nil))
	assert.Equal(t, StateCancelled, m.State())
}
