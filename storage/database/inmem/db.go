// Package inmemdb keeps every table in memory. It backs the tests and local demos.
package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/audit"
	"github.com/trezcool/gradebook/core/result"
	"github.com/trezcool/gradebook/core/stats"
	"github.com/trezcool/gradebook/core/user"
)

type (
	DB struct {
		txMu    sync.Mutex // one transaction at a time
		school  *schoolTable
		user    *userTable
		result  *resultTable
		stats   *statsTable
		history *historyTable
	}

	schoolTable struct {
		sync.RWMutex
		table map[string]user.School
	}

	userTable struct {
		sync.RWMutex
		table map[string]user.User
	}

	resultTable struct {
		sync.RWMutex
		table map[string]result.Result
	}

	statsTable struct {
		sync.RWMutex
		table map[stats.CohortKey]stats.ClassStatistics
	}

	historyTable struct {
		sync.RWMutex
		table []audit.Entry
	}
)

var _ core.Transactor = (*DB)(nil) // interface compliance check

func Open() (*DB, error) {
	db := &DB{
		school:  &schoolTable{table: make(map[string]user.School)},
		user:    &userTable{table: make(map[string]user.User)},
		result:  &resultTable{table: make(map[string]result.Result)},
		stats:   &statsTable{table: make(map[stats.CohortKey]stats.ClassStatistics)},
		history: &historyTable{},
	}
	return db, nil
}

// WithinTx runs fn with the result and statistics tables restored to their
// previous state if fn fails. Writes to other tables are not transactional.
func (db *DB) WithinTx(ctx context.Context, fn func(exec core.DBExecutor) error) (err error) {
	if err = ctx.Err(); err != nil {
		return err
	}

	db.txMu.Lock()
	defer db.txMu.Unlock()

	results, statistics := db.snapshot()
	defer func() {
		if p := recover(); p != nil {
			db.restore(results, statistics)
			panic(p)
		}
	}()

	if err = fn(nil); err != nil {
		db.restore(results, statistics)
	}
	return err
}

func (db *DB) snapshot() (map[string]result.Result, map[stats.CohortKey]stats.ClassStatistics) {
	db.result.RLock()
	results := make(map[string]result.Result, len(db.result.table))
	for k, v := range db.result.table {
		results[k] = v
	}
	db.result.RUnlock()

	db.stats.RLock()
	statistics := make(map[stats.CohortKey]stats.ClassStatistics, len(db.stats.table))
	for k, v := range db.stats.table {
		statistics[k] = v
	}
	db.stats.RUnlock()
	return results, statistics
}

func (db *DB) restore(results map[string]result.Result, statistics map[stats.CohortKey]stats.ClassStatistics) {
	db.result.Lock()
	db.result.table = results
	db.result.Unlock()

	db.stats.Lock()
	db.stats.table = statistics
	db.stats.Unlock()
}

// Reset empties every table.
func (db *DB) Reset() {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.school.Lock()
	db.school.table = make(map[string]user.School)
	db.school.Unlock()

	db.user.Lock()
	db.user.table = make(map[string]user.User)
	db.user.Unlock()

	db.result.Lock()
	db.result.table = make(map[string]result.Result)
	db.result.Unlock()

	db.stats.Lock()
	db.stats.table = make(map[stats.CohortKey]stats.ClassStatistics)
	db.stats.Unlock()

	db.history.Lock()
	db.history.table = nil
	db.history.Unlock()
}
