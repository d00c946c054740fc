package app

import (
	"math"

	"quiz-gate-service/internal/domain"
)

// DefaultPassThreshold is the fraction of questions that must be answered correctly.
const DefaultPassThreshold = 0.6

// PassMark returns ceil(total * threshold) using integer percent arithmetic,
// so 0.6 of 10 is exactly 6 and not subject to float rounding.
func PassMark(total int, threshold float64) int {
	percent := int(math.Round(threshold * 100))
	return (total*percent + 99) / 100
}

// Passed decides pass/fail from the final score.
func Passed(score, total int, threshold float64) bool {
	return score >= PassMark(total, threshold)
}

// scoreAnswers counts correct answers; score is always derived, never incremented.
func scoreAnswers(answers map[int]domain.AnswerRecord) int {
	score := 0
	for _, a := range answers {
		if a.IsCorrect {
			score++
		}
	}
	return score
}
