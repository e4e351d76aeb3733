package market

import "sync"

// MarkStore holds the latest known price per symbol. Safe for concurrent
// use; live sessions update it as bars arrive and read it when marking
// open positions to market.
type MarkStore struct {
	mu    sync.RWMutex
	marks map[string]float64
}

func NewMarkStore() *MarkStore {
	return &MarkStore{marks: make(map[string]float64)}
}

func (ms *MarkStore) Set(symbol string, price float64) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.marks[symbol] = price
}

func (ms *MarkStore) Get(symbol string) (float64, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	p, ok := ms.marks[symbol]
	return p, ok
}

// Snapshot copies the current marks for a consistent mark-to-market pass.
func (ms *MarkStore) Snapshot() map[string]float64 {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	out := make(map[string]float64, len(ms.marks))
	for s, p := range ms.marks {
		out[s] = p
	}
	return out
}
