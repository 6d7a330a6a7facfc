package boiledrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/audit"
)

type historyRow struct {
	ID                  string      `boil:"id"`
	SchoolID            string      `boil:"school_id"`
	StudentResultID     string      `boil:"student_result_id"`
	PreviousAssessment1 float64     `boil:"previous_assessment1"`
	PreviousAssessment2 float64     `boil:"previous_assessment2"`
	PreviousCATest      float64     `boil:"previous_ca_test"`
	PreviousExamScore   float64     `boil:"previous_exam_score"`
	PreviousTotalScore  float64     `boil:"previous_total_score"`
	PreviousGrade       string      `boil:"previous_grade"`
	NewAssessment1      float64     `boil:"new_assessment1"`
	NewAssessment2      float64     `boil:"new_assessment2"`
	NewCATest           float64     `boil:"new_ca_test"`
	NewExamScore        float64     `boil:"new_exam_score"`
	NewTotalScore       float64     `boil:"new_total_score"`
	NewGrade            string      `boil:"new_grade"`
	ChangedBy           string      `boil:"changed_by"`
	ChangedByName       null.String `boil:"changed_by_name"`
	ChangeReason        null.String `boil:"change_reason"`
	IPAddress           null.String `boil:"ip_address"`
	UserAgent           null.String `boil:"user_agent"`
	CreatedAt           time.Time   `boil:"created_at"`
}

type historyRepository struct {
	exec core.DBExecutor
}

var _ audit.Repository = (*historyRepository)(nil) // interface compliance check

func NewHistoryRepository(exec core.DBExecutor) *historyRepository {
	return &historyRepository{exec: exec}
}

func (repo historyRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func (repo historyRepository) boil(e audit.Entry) historyRow {
	return historyRow{
		ID:                  e.ID,
		SchoolID:            e.SchoolID,
		StudentResultID:     e.StudentResultID,
		PreviousAssessment1: e.Previous.Assessment1,
		PreviousAssessment2: e.Previous.Assessment2,
		PreviousCATest:      e.Previous.CATest,
		PreviousExamScore:   e.Previous.ExamScore,
		PreviousTotalScore:  e.Previous.TotalScore,
		PreviousGrade:       e.Previous.Grade,
		NewAssessment1:      e.New.Assessment1,
		NewAssessment2:      e.New.Assessment2,
		NewCATest:           e.New.CATest,
		NewExamScore:        e.New.ExamScore,
		NewTotalScore:       e.New.TotalScore,
		NewGrade:            e.New.Grade,
		ChangedBy:           e.ChangedBy,
		ChangeReason:        null.NewString(e.ChangeReason, e.ChangeReason != ""),
		IPAddress:           null.NewString(e.IPAddress, e.IPAddress != ""),
		UserAgent:           null.NewString(e.UserAgent, e.UserAgent != ""),
		CreatedAt:           e.CreatedAt.UTC(),
	}
}

func (repo historyRepository) unboil(row historyRow) audit.Entry {
	return audit.Entry{
		ID:              row.ID,
		SchoolID:        row.SchoolID,
		StudentResultID: row.StudentResultID,
		Previous: audit.Snapshot{
			Assessment1: row.PreviousAssessment1,
			Assessment2: row.PreviousAssessment2,
			CATest:      row.PreviousCATest,
			ExamScore:   row.PreviousExamScore,
			TotalScore:  row.PreviousTotalScore,
			Grade:       row.PreviousGrade,
		},
		New: audit.Snapshot{
			Assessment1: row.NewAssessment1,
			Assessment2: row.NewAssessment2,
			CATest:      row.NewCATest,
			ExamScore:   row.NewExamScore,
			TotalScore:  row.NewTotalScore,
			Grade:       row.NewGrade,
		},
		ChangedBy:     row.ChangedBy,
		ChangedByName: row.ChangedByName.String,
		ChangeReason:  row.ChangeReason.String,
		IPAddress:     row.IPAddress.String,
		UserAgent:     row.UserAgent.String,
		CreatedAt:     row.CreatedAt.UTC(),
	}
}

func (repo historyRepository) InsertEntry(ctx context.Context, e audit.Entry, exec ...core.DBExecutor) (audit.Entry, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	row := repo.boil(e)
	query := `INSERT INTO result_history (
id, school_id, student_result_id,
previous_assessment1, previous_assessment2, previous_ca_test, previous_exam_score, previous_total_score, previous_grade,
new_assessment1, new_assessment2, new_ca_test, new_exam_score, new_total_score, new_grade,
changed_by, change_reason, ip_address, user_agent, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err := queries.Raw(query,
		row.ID, row.SchoolID, row.StudentResultID,
		row.PreviousAssessment1, row.PreviousAssessment2, row.PreviousCATest, row.PreviousExamScore, row.PreviousTotalScore, row.PreviousGrade,
		row.NewAssessment1, row.NewAssessment2, row.NewCATest, row.NewExamScore, row.NewTotalScore, row.NewGrade,
		row.ChangedBy, row.ChangeReason, row.IPAddress, row.UserAgent, row.CreatedAt,
	).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return audit.Entry{}, errors.Wrap(err, "inserting history entry")
	}
	return e, nil
}

func (repo historyRepository) QueryEntries(ctx context.Context, schoolID, resultID string, exec ...core.DBExecutor) ([]audit.Entry, error) {
	entries := make([]audit.Entry, 0)
	if _, err := uuid.Parse(schoolID); err != nil {
		return entries, nil
	}
	if _, err := uuid.Parse(resultID); err != nil {
		return entries, nil
	}

	query := `SELECT h.*, NULLIF(TRIM(u.first_name || ' ' || u.last_name), '') AS changed_by_name
FROM result_history h
LEFT JOIN users u ON u.id = h.changed_by
WHERE h.school_id = $1 AND h.student_result_id = $2
ORDER BY h.created_at DESC, h.id DESC`

	var rows []historyRow
	if err := queries.Raw(query, schoolID, resultID).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying history")
	}
	for _, row := range rows {
		entries = append(entries, repo.unboil(row))
	}
	return entries, nil
}
