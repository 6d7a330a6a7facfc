package result

import "github.com/trezcool/gradebook/core/stats"

// Maximum of each score component. The total can never exceed 100.
const (
	MaxAssessment = 15
	MaxCATest     = 10
	MaxExamScore  = 60
)

type gradeBand struct {
	min    float64
	grade  string
	remark string
}

// WAEC-style scale, highest band first.
var gradeScale = []gradeBand{
	{90, "A1", "Excellent"},
	{80, "B2", "Very Good"},
	{70, "B3", "Good"},
	{65, "C4", "Credit"},
	{60, "C5", "Credit"},
	{50, "C6", "Credit"},
	{45, "D7", "Pass"},
	{40, "E8", "Pass"},
	{0, "F9", "Fail"},
}

// Grade returns the letter grade and default remark of a total score.
func Grade(total float64) (grade, remark string) {
	for _, band := range gradeScale {
		if total >= band.min {
			return band.grade, band.remark
		}
	}
	last := gradeScale[len(gradeScale)-1]
	return last.grade, last.remark
}

// ComputeTotal sums the four components, rounded to 2 decimals.
func ComputeTotal(assessment1, assessment2, caTest, examScore float64) float64 {
	return stats.Round2(assessment1 + assessment2 + caTest + examScore)
}
