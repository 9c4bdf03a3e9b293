package quiz

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// AnswersPerQuestion is fixed: every question shows four answer tiles.
const AnswersPerQuestion = 4

// AllowedTimerSeconds lists the only countdown lengths a question may use.
var AllowedTimerSeconds = []int{5, 10, 20, 30, 60}

type Quiz struct {
	Id        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

type Question struct {
	Id             string   `json:"id"`
	Text           string   `json:"text"`
	ImageUrl       string   `json:"imageUrl,omitempty"`
	Answers        []string `json:"answers"`
	CorrectIndices []int    `json:"correctIndices"`
	TimerSeconds   int      `json:"timerSeconds"`
	DoublePoints   bool     `json:"doublePoints"`
}

// MultipleChoice reports whether the question expects more than one
// answer to be selected.
func (q *Question) MultipleChoice() bool {
	return len(q.CorrectIndices) > 1
}

// ValidateQuiz checks the structural rules a quiz must satisfy before a
// session will accept it. Returns an error with a machine-readable prefix
// suitable for sending to the client verbatim.
func ValidateQuiz(q *Quiz) error {
	if strings.TrimSpace(q.Title) == "" {
		return errors.New("INVALID_QUIZ: Quiz title is required")
	}
	if len(q.Questions) == 0 {
		return errors.New("INVALID_QUIZ: Quiz must contain at least one question")
	}
	for i := range q.Questions {
		if err := validateQuestion(&q.Questions[i]); err != nil {
			return fmt.Errorf("INVALID_QUIZ: Question %d: %s", i+1, err)
		}
	}
	return nil
}

func validateQuestion(q *Question) error {
	if strings.TrimSpace(q.Id) == "" {
		return errors.New("question id is required")
	}
	if strings.TrimSpace(q.Text) == "" {
		return errors.New("question text is required")
	}
	if len(q.Answers) != AnswersPerQuestion {
		return fmt.Errorf("exactly %d answers are required", AnswersPerQuestion)
	}
	if len(q.CorrectIndices) == 0 {
		return errors.New("at least one correct answer is required")
	}
	seen := make(map[int]bool, len(q.CorrectIndices))
	for _, idx := range q.CorrectIndices {
		if idx < 0 || idx >= AnswersPerQuestion {
			return fmt.Errorf("correct answer index %d is out of range", idx)
		}
		if seen[idx] {
			return fmt.Errorf("correct answer index %d is repeated", idx)
		}
		seen[idx] = true
	}
	if !slices.Contains(AllowedTimerSeconds, q.TimerSeconds) {
		return errors.New("timer must be 5, 10, 20, 30 or 60 seconds")
	}
	return nil
}
