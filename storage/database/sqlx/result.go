package sqlxrepos

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/result"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type resultRepository struct {
	db core.DBExecutor
}

var _ result.Repository = (*resultRepository)(nil) // interface compliance check

func NewResultRepository(db core.DBExecutor) *resultRepository {
	return &resultRepository{db: db}
}

func (repo resultRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.db
}

// selectResults selects results with the display names of their student and teacher.
func (repo resultRepository) selectResults() sq.SelectBuilder {
	return psql.Select(
		"r.id", "r.school_id", "r.student_id", "r.subject_name", "r.teacher_id", "r.class", "r.session", "r.term",
		"r.assessment1", "r.assessment2", "r.ca_test", "r.exam_score", "r.total_score", "r.grade",
		"r.remark", "r.teacher_comment", "r.days_present", "r.days_school_opened", "r.position",
		"r.last_updated_by", "r.created_at", "r.updated_at",
		"COALESCE(st.first_name, '') AS student_first_name",
		"COALESCE(st.last_name, '') AS student_last_name",
		"COALESCE(st.email, '') AS student_email",
		"COALESCE(TRIM(te.first_name || ' ' || te.last_name), '') AS teacher_name",
	).
		From("student_results r").
		LeftJoin("users st ON st.id = r.student_id").
		LeftJoin("users te ON te.id = r.teacher_id")
}

func (repo resultRepository) CreateResult(ctx context.Context, res result.Result, exec ...core.DBExecutor) (result.Result, error) {
	res.ID = uuid.New().String()
	res.CreatedAt = res.CreatedAt.UTC()
	res.UpdatedAt = res.UpdatedAt.UTC()

	query, args, err := psql.Insert("student_results").
		Columns(
			"id", "school_id", "student_id", "subject_name", "teacher_id", "class", "session", "term",
			"assessment1", "assessment2", "ca_test", "exam_score", "total_score", "grade",
			"remark", "teacher_comment", "days_present", "days_school_opened",
			"last_updated_by", "created_at", "updated_at",
		).
		Values(
			res.ID, res.SchoolID, res.StudentID, res.SubjectName, res.TeacherID, res.Class, res.Session, res.Term,
			res.Assessment1, res.Assessment2, res.CATest, res.ExamScore, res.TotalScore, res.Grade,
			res.Remark, res.TeacherComment, res.DaysPresent, res.DaysSchoolOpened,
			res.LastUpdatedBy, res.CreatedAt, res.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return result.Result{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.getExec(exec).ExecContext(ctx, query, args...); err != nil {
		return result.Result{}, trapUniqueErr(err, "inserting result")
	}
	return res, nil
}

func (repo resultRepository) GetResult(ctx context.Context, schoolID, id string, forUpdate bool, exec ...core.DBExecutor) (result.Result, error) {
	if !isUUID(schoolID, id) {
		return result.Result{}, core.ErrNotFound
	}
	q := repo.selectResults().Where(sq.Eq{"r.id": id, "r.school_id": schoolID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE OF r")
	}

	query, args, err := q.ToSql()
	if err != nil {
		return result.Result{}, errors.Wrap(err, "building query")
	}
	var res result.Result
	if err = sqlx.GetContext(ctx, repo.getExec(exec), &res, query, args...); err != nil {
		return result.Result{}, trapNoRowsErr(err, "finding result")
	}
	return res, nil
}

func (repo resultRepository) UpdateResult(ctx context.Context, res result.Result, exec ...core.DBExecutor) (result.Result, error) {
	query, args, err := psql.Update("student_results").
		SetMap(map[string]interface{}{
			"assessment1":        res.Assessment1,
			"assessment2":        res.Assessment2,
			"ca_test":            res.CATest,
			"exam_score":         res.ExamScore,
			"total_score":        res.TotalScore,
			"grade":              res.Grade,
			"remark":             res.Remark,
			"teacher_comment":    res.TeacherComment,
			"days_present":       res.DaysPresent,
			"days_school_opened": res.DaysSchoolOpened,
			"last_updated_by":    res.LastUpdatedBy,
			"updated_at":         res.UpdatedAt.UTC(),
		}).
		Where(sq.Eq{"id": res.ID, "school_id": res.SchoolID}).
		ToSql()
	if err != nil {
		return result.Result{}, errors.Wrap(err, "building query")
	}

	sqlRes, err := repo.getExec(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return result.Result{}, errors.Wrap(err, "updating result")
	}
	if n, err := sqlRes.RowsAffected(); err == nil && n == 0 {
		return result.Result{}, core.ErrNotFound
	}
	return res, nil
}

func (repo resultRepository) DeleteResult(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error {
	if !isUUID(schoolID, id) {
		return core.ErrNotFound
	}
	query, args, err := psql.Delete("student_results").Where(sq.Eq{"id": id, "school_id": schoolID}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}

	sqlRes, err := repo.getExec(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "deleting result")
	}
	if n, err := sqlRes.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// results are listed best first
var resultOrdering = []core.DBOrdering{
	{Field: "r.total_score"},
	{Field: "st.last_name", Ascending: true},
	{Field: "r.id", Ascending: true},
}

func (repo resultRepository) QueryResults(ctx context.Context, filter result.QueryFilter, exec ...core.DBExecutor) ([]result.Result, error) {
	results := make([]result.Result, 0)
	if !isUUID(filter.SchoolID) {
		return results, nil
	}

	eq := sq.Eq{"r.school_id": filter.SchoolID}
	if filter.TeacherID != "" {
		eq["r.teacher_id"] = filter.TeacherID
	}
	if filter.StudentID != "" {
		eq["r.student_id"] = filter.StudentID
	}
	if filter.SubjectName != "" {
		eq["r.subject_name"] = filter.SubjectName
	}
	if filter.Class != "" {
		eq["r.class"] = filter.Class
	}
	if filter.Session != "" {
		eq["r.session"] = filter.Session
	}
	if filter.Term != "" {
		eq["r.term"] = filter.Term
	}
	q := repo.selectResults().Where(eq)

	// students with first name, last name or email matching the search keyword
	if filter.Search != "" {
		val := "%" + likeEscaper.Replace(filter.Search) + "%"
		q = q.Where(sq.Or{
			sq.ILike{"st.first_name": val},
			sq.ILike{"st.last_name": val},
			sq.ILike{"st.email": val},
		})
	}

	for _, ord := range resultOrdering {
		q = q.OrderBy(ord.String())
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	if err = sqlx.SelectContext(ctx, repo.getExec(exec), &results, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying results")
	}
	return results, nil
}

func (repo resultRepository) QueryAssignments(ctx context.Context, schoolID, teacherID string, exec ...core.DBExecutor) ([]result.Assignment, error) {
	assignments := make([]result.Assignment, 0)
	if !isUUID(schoolID, teacherID) {
		return assignments, nil
	}

	query, args, err := psql.Select("DISTINCT subject_name, class, session, term").
		From("student_results").
		Where(sq.Eq{"school_id": schoolID, "teacher_id": teacherID}).
		OrderBy("session DESC", "term", "subject_name", "class").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	if err = sqlx.SelectContext(ctx, repo.getExec(exec), &assignments, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	return assignments, nil
}
