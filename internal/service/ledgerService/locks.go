package ledgerService

import "sync"

// portfolioLocks hands out one mutex per portfolio. Entries are dropped once
// nobody holds or waits for them.
type portfolioLocks struct {
	mu    sync.Mutex
	locks map[int64]*portfolioLock
}

type portfolioLock struct {
	mu   sync.Mutex
	refs int
}

func newPortfolioLocks() *portfolioLocks {
	return &portfolioLocks{locks: make(map[int64]*portfolioLock)}
}

func (l *portfolioLocks) lock(portfolioID int64) (unlock func()) {
	l.mu.Lock()
	pl, ok := l.locks[portfolioID]
	if !ok {
		pl = &portfolioLock{}
		l.locks[portfolioID] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.mu.Lock()

	return func() {
		pl.mu.Unlock()

		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.locks, portfolioID)
		}
		l.mu.Unlock()
	}
}
