package wallet

import "sync"

// lockTable hands out one mutex per wallet ID so trade execution is
// serialized per wallet without a global lock. Mutexes are never
// evicted; the table grows with the number of wallets ever traded,
// which is bounded by the user count.
type lockTable struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[uint]*sync.Mutex)}
}

func (t *lockTable) get(walletID uint) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	lock, ok := t.locks[walletID]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[walletID] = lock
	}
	return lock
}

// Lock acquires the wallet's execution lock and returns the unlock
// function.
func (t *lockTable) Lock(walletID uint) func() {
	lock := t.get(walletID)
	lock.Lock()
	return lock.Unlock
}
