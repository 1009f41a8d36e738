package wallet

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockSerializesSameWallet(t *testing.T) {
	table := newLockTable()

	var mu sync.Mutex
	var order []int

	unlock := table.Lock(1)

	started := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		close(started)
		u := table.Lock(1)
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
		u()
		close(finished)
	}()

	<-started
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	order = append(order, 1)
	mu.Unlock()
	unlock()

	<-finished
	assert.Equal(t, []int{1, 2}, order)
}

func TestLockIndependentWallets(t *testing.T) {
	table := newLockTable()

	unlock1 := table.Lock(1)
	defer unlock1()

	// A different wallet's lock must not block
	acquired := make(chan struct{})
	go func() {
		u := table.Lock(2)
		u()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock on independent wallet blocked")
	}
}

func TestLockTableReusesMutex(t *testing.T) {
	table := newLockTable()
	first := table.get(7)
	second := table.get(7)
	assert.Same(t, first, second)
}
