package network

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherOrder(t *testing.T) {
	d := NewDispatcher(4, nil)
	defer d.Close(time.Second)

	var (
		mu  sync.Mutex
		got []int
		wg  sync.WaitGroup
	)
	wg.Add(100)
	for i := 0; i < 100; i++ {
		i := i
		require.True(t, d.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			wg.Done()
		}))
	}
	wg.Wait()

	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestDispatcherSurvivesPanic(t *testing.T) {
	d := NewDispatcher(4, nil)
	defer d.Close(time.Second)

	done := make(chan struct{})
	d.Post(func() { panic("observer bug") })
	d.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher stopped after panic")
	}
}

func TestDispatcherClose(t *testing.T) {
	d := NewDispatcher(1, nil)

	assert.True(t, d.Close(time.Second))
	assert.True(t, d.Close(time.Second))
	assert.False(t, d.Post(func() {}))
}

func TestDispatcherCloseTimeout(t *testing.T) {
	d := NewDispatcher(1, nil)
	release := make(chan struct{})
	started := make(chan struct{})

	d.Post(func() {
		close(started)
		<-release
	})
	<-started

	assert.False(t, d.Close(20*time.Millisecond))
	close(release)
	assert.True(t, d.Close(time.Second))
}
