package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/tenant"
	"github.com/trezcool/gradebook/core/user"
)

// psql builds statements with postgres placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const uniqueViolation = "23505"

// trapNoRowsErr maps "no rows" errors to core.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return core.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// trapUniqueErr maps unique violations to a *core.ConflictError
func trapUniqueErr(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return core.NewConflictError(pqErr.Message)
	}
	return errors.Wrap(err, msg)
}

func isUUID(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}

type schoolRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Code      string    `db:"code"`
	CreatedAt time.Time `db:"created_at"`
}

type userRow struct {
	ID           string     `db:"id"`
	SchoolID     string     `db:"school_id"`
	FirstName    string     `db:"first_name"`
	LastName     string     `db:"last_name"`
	Email        string     `db:"email"`
	Role         string     `db:"role"`
	IsActive     bool       `db:"is_active"`
	PasswordHash null.Bytes `db:"password_hash"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	LastLogin    null.Time  `db:"last_login"`
}

const userColumns = "id, school_id, first_name, last_name, email, role, is_active, password_hash, created_at, updated_at, last_login"

type userRepository struct {
	db core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DBExecutor) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.db
}

func (repo userRepository) boil(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		SchoolID:     usr.SchoolID,
		FirstName:    usr.FirstName,
		LastName:     usr.LastName,
		Email:        usr.Email,
		Role:         string(usr.Role),
		IsActive:     usr.IsActive,
		PasswordHash: null.NewBytes(usr.PasswordHash, usr.PasswordHash != nil),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) unboil(row userRow) user.User {
	return user.User{
		ID:           row.ID,
		SchoolID:     row.SchoolID,
		FirstName:    row.FirstName,
		LastName:     row.LastName,
		Email:        row.Email,
		Role:         tenant.Role(row.Role),
		IsActive:     row.IsActive,
		PasswordHash: row.PasswordHash.Bytes,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
		LastLogin:    row.LastLogin.Time.UTC(),
	}
}

func (repo userRepository) CreateSchool(ctx context.Context, school user.School, exec ...core.DBExecutor) (user.School, error) {
	school.ID = uuid.New().String()
	query, args, err := psql.Insert("schools").
		Columns("id", "name", "code", "created_at").
		Values(school.ID, school.Name, school.Code, school.CreatedAt.UTC()).
		ToSql()
	if err != nil {
		return user.School{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.getExec(exec).ExecContext(ctx, query, args...); err != nil {
		return user.School{}, trapUniqueErr(err, "inserting school")
	}
	return school, nil
}

func (repo userRepository) GetSchool(ctx context.Context, filter user.GetSchoolFilter, exec ...core.DBExecutor) (user.School, error) {
	q := psql.Select("id, name, code, created_at").From("schools")
	switch {
	case filter.ID != "":
		if !isUUID(filter.ID) {
			return user.School{}, core.ErrNotFound
		}
		q = q.Where(sq.Eq{"id": filter.ID})
	case filter.Code != "":
		q = q.Where(sq.Eq{"code": filter.Code})
	default:
		return user.School{}, core.ErrNotFound
	}

	query, args, err := q.ToSql()
	if err != nil {
		return user.School{}, errors.Wrap(err, "building query")
	}
	var row schoolRow
	if err = sqlx.GetContext(ctx, repo.getExec(exec), &row, query, args...); err != nil {
		return user.School{}, trapNoRowsErr(err, "finding school")
	}
	return user.School(row), nil
}

func (repo userRepository) QuerySchools(ctx context.Context, exec ...core.DBExecutor) ([]user.School, error) {
	var rows []schoolRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, "SELECT id, name, code, created_at FROM schools ORDER BY name"); err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	schools := make([]user.School, 0, len(rows))
	for _, row := range rows {
		schools = append(schools, user.School(row))
	}
	return schools, nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	row := repo.boil(usr)
	query, args, err := psql.Insert("users").
		Columns("id", "school_id", "first_name", "last_name", "email", "role", "is_active", "password_hash", "created_at", "updated_at", "last_login").
		Values(row.ID, row.SchoolID, row.FirstName, row.LastName, row.Email, row.Role, row.IsActive, row.PasswordHash, row.CreatedAt, row.UpdatedAt, row.LastLogin).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.getExec(exec).ExecContext(ctx, query, args...); err != nil {
		return user.User{}, trapUniqueErr(err, "inserting user")
	}
	return repo.unboil(row), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	eq := sq.Eq{}
	if filter.SchoolID != "" {
		if !isUUID(filter.SchoolID) {
			return user.User{}, core.ErrNotFound
		}
		eq["school_id"] = filter.SchoolID
	}
	if filter.ID != "" {
		if !isUUID(filter.ID) {
			return user.User{}, core.ErrNotFound
		}
		eq["id"] = filter.ID
	}
	if filter.Email != "" {
		eq["email"] = filter.Email
	}
	if len(eq) == 0 {
		return user.User{}, core.ErrNotFound
	}

	query, args, err := psql.Select(userColumns).From("users").Where(eq).ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}
	var row userRow
	if err = sqlx.GetContext(ctx, repo.getExec(exec), &row, query, args...); err != nil {
		return user.User{}, trapNoRowsErr(err, "finding user")
	}
	return repo.unboil(row), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	row := repo.boil(usr)
	query, args, err := psql.Update("users").
		SetMap(map[string]interface{}{
			"first_name":    row.FirstName,
			"last_name":     row.LastName,
			"email":         row.Email,
			"role":          row.Role,
			"is_active":     row.IsActive,
			"password_hash": row.PasswordHash,
			"updated_at":    row.UpdatedAt,
			"last_login":    row.LastLogin,
		}).
		Where(sq.Eq{"id": row.ID, "school_id": row.SchoolID}).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}

	res, err := repo.getExec(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return user.User{}, trapUniqueErr(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, core.ErrNotFound
	}
	return repo.unboil(row), nil
}
