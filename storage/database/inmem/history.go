package inmemdb

import (
	"context"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/audit"
)

type historyRepository struct {
	db *DB
}

var _ audit.Repository = (*historyRepository)(nil) // interface compliance check

func NewHistoryRepository(db *DB) *historyRepository {
	return &historyRepository{db: db}
}

func (repo *historyRepository) InsertEntry(_ context.Context, e audit.Entry, _ ...core.DBExecutor) (audit.Entry, error) {
	repo.db.history.Lock()
	defer repo.db.history.Unlock()

	e.ChangedByName = ""
	repo.db.history.table = append(repo.db.history.table, e)
	return e, nil
}

// QueryEntries walks the ledger backwards: entries are appended in creation order.
func (repo *historyRepository) QueryEntries(_ context.Context, schoolID, resultID string, _ ...core.DBExecutor) ([]audit.Entry, error) {
	repo.db.history.RLock()
	defer repo.db.history.RUnlock()

	entries := make([]audit.Entry, 0)
	for i := len(repo.db.history.table) - 1; i >= 0; i-- {
		e := repo.db.history.table[i]
		if e.SchoolID == schoolID && e.StudentResultID == resultID {
			entries = append(entries, e)
		}
	}

	repo.db.user.RLock()
	defer repo.db.user.RUnlock()
	for i := range entries {
		if u, ok := repo.db.user.table[entries[i].ChangedBy]; ok {
			entries[i].ChangedByName = u.FullName()
		}
	}
	return entries, nil
}
