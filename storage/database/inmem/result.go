package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/result"
)

type resultRepository struct {
	db *DB
}

var _ result.Repository = (*resultRepository)(nil) // interface compliance check

func NewResultRepository(db *DB) *resultRepository {
	return &resultRepository{db: db}
}

// withNames sets the display fields of res. The caller holds the result lock.
func (repo *resultRepository) withNames(res result.Result) result.Result {
	repo.db.user.RLock()
	defer repo.db.user.RUnlock()

	if st, ok := repo.db.user.table[res.StudentID]; ok {
		res.StudentFirstName = st.FirstName
		res.StudentLastName = st.LastName
		res.StudentEmail = st.Email
	}
	if te, ok := repo.db.user.table[res.TeacherID]; ok {
		res.TeacherName = te.FullName()
	}
	return res
}

// stored strips the display fields before storing res.
func stored(res result.Result) result.Result {
	res.StudentFirstName = ""
	res.StudentLastName = ""
	res.StudentEmail = ""
	res.TeacherName = ""
	return res
}

func sameCohortAndStudent(a, b result.Result) bool {
	return a.SchoolID == b.SchoolID && a.StudentID == b.StudentID && a.SubjectName == b.SubjectName &&
		a.Class == b.Class && a.Session == b.Session && a.Term == b.Term
}

func (repo *resultRepository) CreateResult(_ context.Context, res result.Result, _ ...core.DBExecutor) (result.Result, error) {
	repo.db.result.Lock()
	defer repo.db.result.Unlock()

	for _, r := range repo.db.result.table {
		if sameCohortAndStudent(r, res) {
			return result.Result{}, core.NewConflictError("duplicate result")
		}
	}
	res.ID = uuid.New().String()
	res.Position = nil
	repo.db.result.table[res.ID] = stored(res)
	return res, nil
}

func (repo *resultRepository) GetResult(_ context.Context, schoolID, id string, _ bool, _ ...core.DBExecutor) (result.Result, error) {
	repo.db.result.RLock()
	defer repo.db.result.RUnlock()

	res, ok := repo.db.result.table[id]
	if !ok || res.SchoolID != schoolID {
		return result.Result{}, core.ErrNotFound
	}
	return repo.withNames(res), nil
}

func (repo *resultRepository) UpdateResult(_ context.Context, res result.Result, _ ...core.DBExecutor) (result.Result, error) {
	repo.db.result.Lock()
	defer repo.db.result.Unlock()

	orig, ok := repo.db.result.table[res.ID]
	if !ok || orig.SchoolID != res.SchoolID {
		return result.Result{}, core.ErrNotFound
	}
	// the cohort key, owners, position and creation time are not updatable
	orig.Assessment1 = res.Assessment1
	orig.Assessment2 = res.Assessment2
	orig.CATest = res.CATest
	orig.ExamScore = res.ExamScore
	orig.TotalScore = res.TotalScore
	orig.Grade = res.Grade
	orig.Remark = res.Remark
	orig.TeacherComment = res.TeacherComment
	orig.DaysPresent = res.DaysPresent
	orig.DaysSchoolOpened = res.DaysSchoolOpened
	orig.LastUpdatedBy = res.LastUpdatedBy
	orig.UpdatedAt = res.UpdatedAt
	repo.db.result.table[res.ID] = orig
	return res, nil
}

func (repo *resultRepository) DeleteResult(_ context.Context, schoolID, id string, _ ...core.DBExecutor) error {
	repo.db.result.Lock()
	defer repo.db.result.Unlock()

	res, ok := repo.db.result.table[id]
	if !ok || res.SchoolID != schoolID {
		return core.ErrNotFound
	}
	delete(repo.db.result.table, id)
	return nil
}

func matchesSearch(res result.Result, search string) bool {
	search = strings.ToLower(search)
	return strings.Contains(strings.ToLower(res.StudentFirstName), search) ||
		strings.Contains(strings.ToLower(res.StudentLastName), search) ||
		strings.Contains(strings.ToLower(res.StudentEmail), search)
}

func (repo *resultRepository) QueryResults(_ context.Context, filter result.QueryFilter, _ ...core.DBExecutor) ([]result.Result, error) {
	repo.db.result.RLock()
	defer repo.db.result.RUnlock()

	results := make([]result.Result, 0)
	for _, r := range repo.db.result.table {
		if r.SchoolID != filter.SchoolID ||
			(filter.TeacherID != "" && r.TeacherID != filter.TeacherID) ||
			(filter.StudentID != "" && r.StudentID != filter.StudentID) ||
			(filter.SubjectName != "" && r.SubjectName != filter.SubjectName) ||
			(filter.Class != "" && r.Class != filter.Class) ||
			(filter.Session != "" && r.Session != filter.Session) ||
			(filter.Term != "" && r.Term != filter.Term) {
			continue
		}
		r = repo.withNames(r)
		if filter.Search != "" && !matchesSearch(r, filter.Search) {
			continue
		}
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.StudentLastName != b.StudentLastName {
			return a.StudentLastName < b.StudentLastName
		}
		return a.ID < b.ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(results) {
			return []result.Result{}, nil
		}
		results = results[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(results) {
		results = results[:filter.Limit]
	}
	return results, nil
}

func (repo *resultRepository) QueryAssignments(_ context.Context, schoolID, teacherID string, _ ...core.DBExecutor) ([]result.Assignment, error) {
	repo.db.result.RLock()
	defer repo.db.result.RUnlock()

	seen := make(map[result.Assignment]bool)
	assignments := make([]result.Assignment, 0)
	for _, r := range repo.db.result.table {
		if r.SchoolID != schoolID || r.TeacherID != teacherID {
			continue
		}
		a := result.Assignment{SubjectName: r.SubjectName, Class: r.Class, Session: r.Session, Term: r.Term}
		if !seen[a] {
			seen[a] = true
			assignments = append(assignments, a)
		}
	}

	sort.Slice(assignments, func(i, j int) bool {
		a, b := assignments[i], assignments[j]
		switch {
		case a.Session != b.Session:
			return a.Session > b.Session
		case a.Term != b.Term:
			return a.Term < b.Term
		case a.SubjectName != b.SubjectName:
			return a.SubjectName < b.SubjectName
		default:
			return a.Class < b.Class
		}
	})
	return assignments, nil
}

