package signal

import "sync"

// Queue is a Source fed by external strategy processes. Each symbol
// holds at most the latest signal; admission consumes it exactly once.
type Queue struct {
	mu      sync.Mutex
	pending map[string]Signal
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{pending: make(map[string]Signal)}
}

// Push hands over a signal, replacing any unconsumed one for the symbol:
// a newer evaluation supersedes a stale proposal.
func (q *Queue) Push(sig Signal) {
	if sig.Symbol == "" {
		return
	}
	q.mu.Lock()
	q.pending[sig.Symbol] = sig
	q.mu.Unlock()
}

// Next implements Source: it removes and returns the pending signal.
func (q *Queue) Next(symbol string) (Signal, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	sig, ok := q.pending[symbol]
	if !ok {
		return Signal{}, false
	}
	delete(q.pending, symbol)
	return sig, true
}
