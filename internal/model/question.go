package model

import (
	"fmt"
	"strings"
)

// MaxQuestions bounds the size of a single user's question bank
const MaxQuestions = 500

// Question is a single country/capital prompt
type Question struct {
	Country string `json:"country"`
	Capital string `json:"capital"`
}

// Normalize trims surrounding whitespace from both fields
func (q Question) Normalize() Question {
	return Question{
		Country: strings.TrimSpace(q.Country),
		Capital: strings.TrimSpace(q.Capital),
	}
}

// Validate checks that both fields are present
func (q Question) Validate() error {
	n := q.Normalize()
	if n.Country == "" || n.Capital == "" {
		return fmt.Errorf("%w: country and capital are required", ErrInvalidQuestion)
	}
	return nil
}

// Matches reports whether an answer is correct for this question.
// Comparison ignores case and surrounding whitespace.
func (q Question) Matches(answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.Capital))
}
