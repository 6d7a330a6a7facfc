package audit

import "time"

// Snapshot holds the scored fields of a result at one point in time.
type Snapshot struct {
	Assessment1 float64 `json:"assessment1"`
	Assessment2 float64 `json:"assessment2"`
	CATest      float64 `json:"ca_test"`
	ExamScore   float64 `json:"exam_score"`
	TotalScore  float64 `json:"total_score"`
	Grade       string  `json:"grade"`
}

// Entry is one immutable line of a result's history.
type Entry struct {
	ID              string    `json:"id"`
	SchoolID        string    `json:"school_id"`
	StudentResultID string    `json:"student_result_id"`
	Previous        Snapshot  `json:"previous"`
	New             Snapshot  `json:"new"`
	ChangedBy       string    `json:"changed_by"`
	ChangedByName   string    `json:"changed_by_name"`
	ChangeReason    string    `json:"change_reason,omitempty"`
	IPAddress       string    `json:"ip_address,omitempty"`
	UserAgent       string    `json:"user_agent,omitempty"`
	CreatedAt       time.Time `json:"created_at"` // UTC
}
