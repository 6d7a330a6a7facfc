package boiledrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/stats"
)

type scoreRow struct {
	ResultID   string  `boil:"result_id"`
	StudentID  string  `boil:"student_id"`
	TotalScore float64 `boil:"total_score"`
}

type statisticsRow struct {
	SchoolID     string  `boil:"school_id"`
	SubjectName  string  `boil:"subject_name"`
	Class        string  `boil:"class"`
	Session      string  `boil:"session"`
	Term         string  `boil:"term"`
	StudentCount int     `boil:"student_count"`
	AverageScore float64 `boil:"average_score"`
	HighestScore float64 `boil:"highest_score"`
	LowestScore  float64 `boil:"lowest_score"`
}

type cohortRow struct {
	SubjectName string `boil:"subject_name"`
	Class       string `boil:"class"`
	Session     string `boil:"session"`
	Term        string `boil:"term"`
}

const cohortPredicate = "school_id = $1 AND subject_name = $2 AND class = $3 AND session = $4 AND term = $5"

type statisticsRepository struct {
	exec core.DBExecutor
}

var _ stats.Repository = (*statisticsRepository)(nil) // interface compliance check

func NewStatisticsRepository(exec core.DBExecutor) *statisticsRepository {
	return &statisticsRepository{exec: exec}
}

func (repo statisticsRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func cohortArgs(key stats.CohortKey) []interface{} {
	return []interface{}{key.SchoolID, key.SubjectName, key.Class, key.Session, key.Term}
}

func validSchool(key stats.CohortKey) bool {
	_, err := uuid.Parse(key.SchoolID)
	return err == nil
}

func (repo statisticsRepository) CohortScores(ctx context.Context, key stats.CohortKey, forUpdate bool, exec ...core.DBExecutor) ([]stats.Score, error) {
	if !validSchool(key) {
		return []stats.Score{}, nil
	}
	query := "SELECT id AS result_id, student_id, total_score FROM student_results WHERE " + cohortPredicate +
		" ORDER BY total_score DESC, id"
	if forUpdate {
		// rows are locked in id order, like bulk updates lock them
		query = "SELECT result_id, student_id, total_score FROM (" +
			"SELECT id AS result_id, student_id, total_score FROM student_results WHERE " + cohortPredicate +
			" ORDER BY id FOR UPDATE) locked ORDER BY total_score DESC, result_id"
	}

	var rows []scoreRow
	if err := queries.Raw(query, cohortArgs(key)...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying cohort scores")
	}
	scores := make([]stats.Score, 0, len(rows))
	for _, row := range rows {
		scores = append(scores, stats.Score(row))
	}
	return scores, nil
}

func (repo statisticsRepository) QueryCohorts(ctx context.Context, schoolID string, exec ...core.DBExecutor) ([]stats.CohortKey, error) {
	if _, err := uuid.Parse(schoolID); err != nil {
		return []stats.CohortKey{}, nil
	}
	query := `SELECT subject_name, class, session, term FROM student_results WHERE school_id = $1
UNION
SELECT subject_name, class, session, term FROM class_statistics WHERE school_id = $1
ORDER BY session, term, subject_name, class`

	var rows []cohortRow
	if err := queries.Raw(query, schoolID).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying cohorts")
	}
	keys := make([]stats.CohortKey, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, stats.CohortKey{
			SchoolID:    schoolID,
			SubjectName: row.SubjectName,
			Class:       row.Class,
			Session:     row.Session,
			Term:        row.Term,
		})
	}
	return keys, nil
}

func (repo statisticsRepository) GetStatistics(ctx context.Context, key stats.CohortKey, exec ...core.DBExecutor) (stats.ClassStatistics, error) {
	if !validSchool(key) {
		return stats.ClassStatistics{}, core.ErrNotFound
	}
	query := `SELECT school_id, subject_name, class, session, term,
student_count, average_score, highest_score, lowest_score
FROM class_statistics WHERE ` + cohortPredicate

	var row statisticsRow
	if err := queries.Raw(query, cohortArgs(key)...).Bind(ctx, repo.getExec(exec), &row); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return stats.ClassStatistics{}, core.ErrNotFound
		}
		return stats.ClassStatistics{}, errors.Wrap(err, "finding statistics")
	}
	return stats.ClassStatistics{
		CohortKey: stats.CohortKey{
			SchoolID:    row.SchoolID,
			SubjectName: row.SubjectName,
			Class:       row.Class,
			Session:     row.Session,
			Term:        row.Term,
		},
		StudentCount: row.StudentCount,
		AverageScore: row.AverageScore,
		HighestScore: row.HighestScore,
		LowestScore:  row.LowestScore,
	}, nil
}

func (repo statisticsRepository) SaveStatistics(ctx context.Context, st stats.ClassStatistics, exec ...core.DBExecutor) error {
	query := `INSERT INTO class_statistics
(school_id, subject_name, class, session, term, student_count, average_score, highest_score, lowest_score, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
ON CONFLICT (school_id, subject_name, class, session, term) DO UPDATE SET
student_count = EXCLUDED.student_count,
average_score = EXCLUDED.average_score,
highest_score = EXCLUDED.highest_score,
lowest_score = EXCLUDED.lowest_score,
updated_at = EXCLUDED.updated_at`

	args := append(cohortArgs(st.CohortKey), st.StudentCount, st.AverageScore, st.HighestScore, st.LowestScore)
	if _, err := queries.Raw(query, args...).ExecContext(ctx, repo.getExec(exec)); err != nil {
		return errors.Wrap(err, "upserting statistics")
	}
	return nil
}

func (repo statisticsRepository) DeleteStatistics(ctx context.Context, key stats.CohortKey, exec ...core.DBExecutor) error {
	if !validSchool(key) {
		return nil
	}
	if _, err := queries.Raw("DELETE FROM class_statistics WHERE "+cohortPredicate, cohortArgs(key)...).ExecContext(ctx, repo.getExec(exec)); err != nil {
		return errors.Wrap(err, "deleting statistics")
	}
	return nil
}

// SetPositions writes every position of the cohort in one statement.
func (repo statisticsRepository) SetPositions(ctx context.Context, key stats.CohortKey, positions []stats.Position, exec ...core.DBExecutor) error {
	if len(positions) == 0 {
		return nil
	}
	ids := make([]string, 0, len(positions))
	ranks := make([]int64, 0, len(positions))
	for _, p := range positions {
		ids = append(ids, p.ResultID)
		ranks = append(ranks, int64(p.Position))
	}

	query := `UPDATE student_results r SET position = v.position
FROM (SELECT unnest($6::uuid[]) AS id, unnest($7::int[]) AS position) v
WHERE r.id = v.id AND ` + cohortPredicate

	args := append(cohortArgs(key), pq.Array(ids), pq.Array(ranks))
	if _, err := queries.Raw(query, args...).ExecContext(ctx, repo.getExec(exec)); err != nil {
		return errors.Wrap(err, "updating positions")
	}
	return nil
}
