package serial

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueRunsInOrder(t *testing.T) {
	var q Queue
	var mu sync.Mutex
	var got []int

	for i := 0; i < 100; i++ {
		i := i
		q.Submit(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	q.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestQueueNeverRunsInline(t *testing.T) {
	var q Queue
	block := make(chan struct{})
	ran := make(chan struct{})

	// Submit returning while fn is still blocked proves fn runs elsewhere.
	q.Submit(func() {
		<-block
		close(ran)
	})
	close(block)

	<-ran
	q.Wait()
}

func TestQueueSubmitFromCallback(t *testing.T) {
	var q Queue
	done := make(chan int, 2)

	q.Submit(func() {
		q.Submit(func() { done <- 2 })
		done <- 1
	})
	q.Wait()
	q.Wait()

	assert.Equal(t, 1, <-done)
	assert.Equal(t, 2, <-done)
}
