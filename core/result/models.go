package result

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/audit"
	"github.com/trezcool/gradebook/core/stats"
)

// Result is one subject's scores for one student in a cohort.
type Result struct {
	ID               string    `json:"id" db:"id"`
	SchoolID         string    `json:"school_id" db:"school_id"`
	StudentID        string    `json:"student_id" db:"student_id"`
	SubjectName      string    `json:"subject_name" db:"subject_name"`
	TeacherID        string    `json:"teacher_id" db:"teacher_id"`
	Class            string    `json:"class" db:"class"`
	Session          string    `json:"session" db:"session"`
	Term             string    `json:"term" db:"term"`
	Assessment1      float64   `json:"assessment1" db:"assessment1"`
	Assessment2      float64   `json:"assessment2" db:"assessment2"`
	CATest           float64   `json:"ca_test" db:"ca_test"`
	ExamScore        float64   `json:"exam_score" db:"exam_score"`
	TotalScore       float64   `json:"total_score" db:"total_score"`
	Grade            string    `json:"grade" db:"grade"`
	Remark           string    `json:"remark" db:"remark"`
	TeacherComment   string    `json:"teacher_comment" db:"teacher_comment"`
	DaysPresent      int       `json:"days_present" db:"days_present"`
	DaysSchoolOpened int       `json:"days_school_opened" db:"days_school_opened"`
	Position         *int      `json:"position" db:"position"`
	LastUpdatedBy    string    `json:"last_updated_by" db:"last_updated_by"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"` // UTC

	// read-only, joined from the users table
	StudentFirstName string `json:"student_first_name" db:"student_first_name"`
	StudentLastName  string `json:"student_last_name" db:"student_last_name"`
	StudentEmail     string `json:"student_email" db:"student_email"`
	TeacherName      string `json:"teacher_name" db:"teacher_name"`
}

func (res Result) Cohort() stats.CohortKey {
	return stats.CohortKey{
		SchoolID:    res.SchoolID,
		SubjectName: res.SubjectName,
		Class:       res.Class,
		Session:     res.Session,
		Term:        res.Term,
	}
}

// Snapshot returns the audited fields of res.
func (res Result) Snapshot() audit.Snapshot {
	return audit.Snapshot{
		Assessment1: res.Assessment1,
		Assessment2: res.Assessment2,
		CATest:      res.CATest,
		ExamScore:   res.ExamScore,
		TotalScore:  res.TotalScore,
		Grade:       res.Grade,
	}
}

// derive recomputes the total and the grade from the score components.
func (res *Result) derive() {
	res.TotalScore = ComputeTotal(res.Assessment1, res.Assessment2, res.CATest, res.ExamScore)
	res.Grade, _ = Grade(res.TotalScore)
}

func (res Result) checkAttendance() error {
	if res.DaysPresent > res.DaysSchoolOpened {
		return core.NewValidationError(nil, core.FieldError{
			Field: "days_present",
			Error: "days_present cannot exceed days_school_opened",
		})
	}
	return nil
}

// NewResult contains information needed to create a Result.
type NewResult struct {
	StudentID        string  `json:"student_id" validate:"required,notblank"`
	SubjectName      string  `json:"subject_name" validate:"required,notblank,max=100"`
	TeacherID        string  `json:"teacher_id" validate:"required,notblank"`
	Class            string  `json:"class" validate:"required,notblank,max=50"`
	Session          string  `json:"session" validate:"required,session"`
	Term             string  `json:"term" validate:"required,term"`
	Assessment1      float64 `json:"assessment1" validate:"min=0,max=15"`
	Assessment2      float64 `json:"assessment2" validate:"min=0,max=15"`
	CATest           float64 `json:"ca_test" validate:"min=0,max=10"`
	ExamScore        float64 `json:"exam_score" validate:"min=0,max=60"`
	Remark           string  `json:"remark" validate:"max=100"`
	TeacherComment   string  `json:"teacher_comment" validate:"max=1000"`
	DaysPresent      int     `json:"days_present" validate:"min=0"`
	DaysSchoolOpened int     `json:"days_school_opened" validate:"min=0,max=366"`
}

func (nr *NewResult) Validate(validate *validator.Validate) error {
	nr.StudentID = core.CleanString(nr.StudentID)
	nr.TeacherID = core.CleanString(nr.TeacherID)
	nr.SubjectName = core.CleanString(nr.SubjectName)
	nr.Class = core.CleanString(nr.Class)
	nr.Session = core.CleanString(nr.Session)
	nr.Term = core.CleanString(nr.Term)
	nr.Remark = core.CleanString(nr.Remark)
	nr.TeacherComment = core.CleanString(nr.TeacherComment)
	return validate.Struct(nr)
}

// UpdateResult holds a partial update: nil fields keep their current value.
type UpdateResult struct {
	Assessment1      *float64 `json:"assessment1" validate:"omitempty,min=0,max=15"`
	Assessment2      *float64 `json:"assessment2" validate:"omitempty,min=0,max=15"`
	CATest           *float64 `json:"ca_test" validate:"omitempty,min=0,max=10"`
	ExamScore        *float64 `json:"exam_score" validate:"omitempty,min=0,max=60"`
	Remark           *string  `json:"remark" validate:"omitempty,max=100"`
	TeacherComment   *string  `json:"teacher_comment" validate:"omitempty,max=1000"`
	DaysPresent      *int     `json:"days_present" validate:"omitempty,min=0"`
	DaysSchoolOpened *int     `json:"days_school_opened" validate:"omitempty,min=0,max=366"`
	ChangeReason     string   `json:"change_reason" validate:"max=500"`
}

func (ur *UpdateResult) Validate(validate *validator.Validate) error {
	ur.clean()
	return validate.Struct(ur)
}

func (ur *UpdateResult) clean() {
	if ur.Remark != nil {
		*ur.Remark = core.CleanString(*ur.Remark)
	}
	if ur.TeacherComment != nil {
		*ur.TeacherComment = core.CleanString(*ur.TeacherComment)
	}
	ur.ChangeReason = core.CleanString(ur.ChangeReason)
}

// apply copies the set fields of ur onto res and recomputes the derived fields.
func (ur UpdateResult) apply(res *Result) {
	if ur.Assessment1 != nil {
		res.Assessment1 = *ur.Assessment1
	}
	if ur.Assessment2 != nil {
		res.Assessment2 = *ur.Assessment2
	}
	if ur.CATest != nil {
		res.CATest = *ur.CATest
	}
	if ur.ExamScore != nil {
		res.ExamScore = *ur.ExamScore
	}
	if ur.Remark != nil {
		res.Remark = *ur.Remark
	}
	if ur.TeacherComment != nil {
		res.TeacherComment = *ur.TeacherComment
	}
	if ur.DaysPresent != nil {
		res.DaysPresent = *ur.DaysPresent
	}
	if ur.DaysSchoolOpened != nil {
		res.DaysSchoolOpened = *ur.DaysSchoolOpened
	}
	res.derive()
}

// BulkItem is one update of a bulk batch.
type BulkItem struct {
	ID string `json:"id" validate:"required,notblank"`
	UpdateResult
}

type BulkUpdate struct {
	Updates []BulkItem `json:"updates" validate:"required,min=1,dive"`
}

func (bu *BulkUpdate) Validate(validate *validator.Validate, maxSize int) error {
	if maxSize > 0 && len(bu.Updates) > maxSize {
		return core.NewValidationError(nil, core.FieldError{
			Field: "updates",
			Error: "too many updates in one batch",
		})
	}
	for i := range bu.Updates {
		bu.Updates[i].ID = core.CleanString(bu.Updates[i].ID)
		bu.Updates[i].clean()
	}
	return validate.Struct(bu)
}

// ChangeMeta describes where a change comes from. It is copied into the history.
type ChangeMeta struct {
	IPAddress string
	UserAgent string
}

// QueryFilter narrows a listing. SchoolID is always set from the caller.
type QueryFilter struct {
	SchoolID    string `query:"-"`
	TeacherID   string `query:"-"`
	StudentID   string `query:"-"`
	SubjectName string `query:"subject_name"`
	Class       string `query:"class"`
	Session     string `query:"session"`
	Term        string `query:"term"`
	Search      string `query:"student_search"`
	Limit       int    `query:"limit"`
	Offset      int    `query:"offset"`
}

func (f *QueryFilter) Clean(defaultLimit, maxLimit int) {
	f.SubjectName = core.CleanString(f.SubjectName)
	f.Class = core.CleanString(f.Class)
	f.Session = core.CleanString(f.Session)
	f.Term = core.CleanString(f.Term)
	f.Search = core.CleanString(f.Search)
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if maxLimit > 0 && f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// Assignment is a (subject, class, session, term) taught by a teacher.
type Assignment struct {
	SubjectName string `json:"subject_name" db:"subject_name"`
	Class       string `json:"class" db:"class"`
	Session     string `json:"session" db:"session"`
	Term        string `json:"term" db:"term"`
}
