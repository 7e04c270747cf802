package accounts

import (
	"sync"

	"github.com/entrhq/authcache/pkg/logging"
)

// Assigner binds worker IDs to pool accounts. A worker keeps the same
// account for the Assigner's lifetime.
type Assigner struct {
	mu       sync.Mutex
	pool     []Account
	assigned map[int]Account
	logger   *logging.Logger
}

// NewAssigner creates an Assigner over pool. It panics if pool is empty.
func NewAssigner(pool []Account, logger *logging.Logger) *Assigner {
	if len(pool) == 0 {
		panic("accounts: empty account pool")
	}
	if logger == nil {
		logger = logging.Discard("accounts")
	}
	p := make([]Account, len(pool))
	copy(p, pool)
	return &Assigner{
		pool:     p,
		assigned: make(map[int]Account),
		logger:   logger,
	}
}

// Assign returns the account for workerID: pool[workerID mod len(pool)].
func (a *Assigner) Assign(workerID int) Account {
	a.mu.Lock()
	defer a.mu.Unlock()

	if acct, ok := a.assigned[workerID]; ok {
		return acct
	}

	acct := a.pool[Index(workerID, len(a.pool))]
	a.assigned[workerID] = acct
	a.logger.Infof("worker %d assigned to %s", workerID, acct.Username)
	return acct
}

// Pool returns a copy of the pool the Assigner draws from.
func (a *Assigner) Pool() []Account {
	p := make([]Account, len(a.pool))
	copy(p, a.pool)
	return p
}

// Index folds workerID into [0, n).
func Index(workerID, n int) int {
	i := workerID % n
	if i < 0 {
		i += n
	}
	return i
}
