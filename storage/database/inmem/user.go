package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CreateSchool(_ context.Context, school user.School, _ ...core.DBExecutor) (user.School, error) {
	repo.db.school.Lock()
	defer repo.db.school.Unlock()

	for _, s := range repo.db.school.table {
		if s.Code == school.Code {
			return user.School{}, core.NewConflictError("duplicate school code")
		}
	}
	school.ID = uuid.New().String()
	repo.db.school.table[school.ID] = school
	return school, nil
}

func (repo *userRepository) GetSchool(_ context.Context, filter user.GetSchoolFilter, _ ...core.DBExecutor) (user.School, error) {
	repo.db.school.RLock()
	defer repo.db.school.RUnlock()

	switch {
	case filter.ID != "":
		if s, ok := repo.db.school.table[filter.ID]; ok {
			return s, nil
		}
	case filter.Code != "":
		for _, s := range repo.db.school.table {
			if s.Code == filter.Code {
				return s, nil
			}
		}
	}
	return user.School{}, core.ErrNotFound
}

func (repo *userRepository) QuerySchools(_ context.Context, _ ...core.DBExecutor) ([]user.School, error) {
	repo.db.school.RLock()
	defer repo.db.school.RUnlock()

	schools := make([]user.School, 0, len(repo.db.school.table))
	for _, s := range repo.db.school.table {
		schools = append(schools, s)
	}
	sort.Slice(schools, func(i, j int) bool { return schools[i].Name < schools[j].Name })
	return schools, nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.user.Lock()
	defer repo.db.user.Unlock()

	for _, u := range repo.db.user.table {
		if u.SchoolID == usr.SchoolID && u.Email == usr.Email {
			return user.User{}, core.NewConflictError("duplicate email")
		}
	}
	usr.ID = uuid.New().String()
	repo.db.user.table[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.user.RLock()
	defer repo.db.user.RUnlock()

	if filter.ID == "" && filter.Email == "" && filter.SchoolID == "" {
		return user.User{}, core.ErrNotFound
	}
	for _, u := range repo.db.user.table {
		if (filter.ID == "" || u.ID == filter.ID) &&
			(filter.SchoolID == "" || u.SchoolID == filter.SchoolID) &&
			(filter.Email == "" || u.Email == filter.Email) {
			return u, nil
		}
	}
	return user.User{}, core.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.user.Lock()
	defer repo.db.user.Unlock()

	orig, ok := repo.db.user.table[usr.ID]
	if !ok || orig.SchoolID != usr.SchoolID {
		return user.User{}, core.ErrNotFound
	}
	for _, u := range repo.db.user.table {
		if u.ID != usr.ID && u.SchoolID == usr.SchoolID && u.Email == usr.Email {
			return user.User{}, core.NewConflictError("duplicate email")
		}
	}
	usr.CreatedAt = orig.CreatedAt
	repo.db.user.table[usr.ID] = usr
	return usr, nil
}
