package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/result"
	"github.com/trezcool/gradebook/core/stats"
)

type statisticsRepository struct {
	db *DB
}

var _ stats.Repository = (*statisticsRepository)(nil) // interface compliance check

func NewStatisticsRepository(db *DB) *statisticsRepository {
	return &statisticsRepository{db: db}
}

func inCohort(r result.Result, key stats.CohortKey) bool {
	return r.Cohort() == key
}

func (repo *statisticsRepository) CohortScores(_ context.Context, key stats.CohortKey, _ bool, _ ...core.DBExecutor) ([]stats.Score, error) {
	repo.db.result.RLock()
	defer repo.db.result.RUnlock()

	scores := make([]stats.Score, 0)
	for _, r := range repo.db.result.table {
		if inCohort(r, key) {
			scores = append(scores, stats.Score{ResultID: r.ID, StudentID: r.StudentID, TotalScore: r.TotalScore})
		}
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].TotalScore != scores[j].TotalScore {
			return scores[i].TotalScore > scores[j].TotalScore
		}
		return scores[i].ResultID < scores[j].ResultID
	})
	return scores, nil
}

func (repo *statisticsRepository) QueryCohorts(_ context.Context, schoolID string, _ ...core.DBExecutor) ([]stats.CohortKey, error) {
	seen := make(map[stats.CohortKey]bool)
	keys := make([]stats.CohortKey, 0)
	add := func(key stats.CohortKey) {
		if key.SchoolID == schoolID && !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}

	repo.db.result.RLock()
	for _, r := range repo.db.result.table {
		add(r.Cohort())
	}
	repo.db.result.RUnlock()

	repo.db.stats.RLock()
	for key := range repo.db.stats.table {
		add(key)
	}
	repo.db.stats.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		switch {
		case a.Session != b.Session:
			return a.Session < b.Session
		case a.Term != b.Term:
			return a.Term < b.Term
		case a.SubjectName != b.SubjectName:
			return a.SubjectName < b.SubjectName
		default:
			return a.Class < b.Class
		}
	})
	return keys, nil
}

func (repo *statisticsRepository) GetStatistics(_ context.Context, key stats.CohortKey, _ ...core.DBExecutor) (stats.ClassStatistics, error) {
	repo.db.stats.RLock()
	defer repo.db.stats.RUnlock()

	if st, ok := repo.db.stats.table[key]; ok {
		return st, nil
	}
	return stats.ClassStatistics{}, core.ErrNotFound
}

func (repo *statisticsRepository) SaveStatistics(_ context.Context, st stats.ClassStatistics, _ ...core.DBExecutor) error {
	repo.db.stats.Lock()
	defer repo.db.stats.Unlock()

	repo.db.stats.table[st.CohortKey] = st
	return nil
}

func (repo *statisticsRepository) DeleteStatistics(_ context.Context, key stats.CohortKey, _ ...core.DBExecutor) error {
	repo.db.stats.Lock()
	defer repo.db.stats.Unlock()

	delete(repo.db.stats.table, key)
	return nil
}

func (repo *statisticsRepository) SetPositions(_ context.Context, key stats.CohortKey, positions []stats.Position, _ ...core.DBExecutor) error {
	repo.db.result.Lock()
	defer repo.db.result.Unlock()

	for _, p := range positions {
		r, ok := repo.db.result.table[p.ResultID]
		if !ok || !inCohort(r, key) {
			continue
		}
		pos := p.Position
		r.Position = &pos
		repo.db.result.table[p.ResultID] = r
	}
	return nil
}
