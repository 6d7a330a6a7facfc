package stats

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/gradebook/core"
)

// CohortKey groups the results ranked and summarized together:
// one subject, in one class, for one term of one session, within a school.
type CohortKey struct {
	SchoolID    string `json:"school_id" query:"-"`
	SubjectName string `json:"subject_name" query:"subject_name" validate:"required,notblank"`
	Class       string `json:"class" query:"class" validate:"required,notblank"`
	Session     string `json:"session" query:"session" validate:"required,session"`
	Term        string `json:"term" query:"term" validate:"required,term"`
}

func (key *CohortKey) Clean() {
	key.SubjectName = core.CleanString(key.SubjectName)
	key.Class = core.CleanString(key.Class)
	key.Session = core.CleanString(key.Session)
	key.Term = core.CleanString(key.Term)
}

func (key *CohortKey) Validate(validate *validator.Validate) error {
	key.Clean()
	return validate.Struct(key)
}

func (key CohortKey) String() string {
	return key.SchoolID + "|" + key.SubjectName + "|" + key.Class + "|" + key.Session + "|" + key.Term
}

// ClassStatistics is derived from the cohort's results and never edited by hand.
type ClassStatistics struct {
	CohortKey
	StudentCount int     `json:"student_count"`
	AverageScore float64 `json:"average_score"`
	HighestScore float64 `json:"highest_score"`
	LowestScore  float64 `json:"lowest_score"`
}

// Score is the part of a result the engine needs.
type Score struct {
	ResultID   string  `json:"result_id"`
	StudentID  string  `json:"student_id"`
	TotalScore float64 `json:"total_score"`
}

type Position struct {
	ResultID   string  `json:"result_id"`
	StudentID  string  `json:"student_id"`
	TotalScore float64 `json:"total_score"`
	Position   int     `json:"position"`
}

// Recomputation is the outcome of refreshing a cohort's statistics and positions.
type Recomputation struct {
	Statistics ClassStatistics `json:"statistics"`
	Positions  []Position      `json:"positions"`
}
