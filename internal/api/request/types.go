package request

import "github.com/mcoot/capitalduel/internal/model"

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
}

// SetPasswordRequest is the request body for setting a password
type SetPasswordRequest struct {
	Password string `json:"password"`
}

// ReplaceQuestionsRequest is the request body for replacing a question bank
type ReplaceQuestionsRequest struct {
	Questions []model.Question `json:"questions"`
}
